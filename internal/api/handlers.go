// handlers.go - HTTP handlers for document and meeting-audio processing

package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kaigodx/care_sheet_gemini/configs"
	"github.com/kaigodx/care_sheet_gemini/internal/ai"
	"github.com/kaigodx/care_sheet_gemini/internal/pipeline"
	"github.com/kaigodx/care_sheet_gemini/internal/storage"
)

// runTimeout caps one processing run. Multi-page PDFs plus reconciliation
// batches can take a few minutes.
const runTimeout = 10 * time.Minute

var documentExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".aac": true, ".flac": true, ".ogg": true,
}

// Handlers carries the pipeline runner into the gin handlers.
type Handlers struct {
	Runner *pipeline.Runner
}

func NewHandlers(runner *pipeline.Runner) *Handlers {
	return &Handlers{Runner: runner}
}

// ProcessDocument handles POST /api/v1/process/document.
// Multipart fields: files (repeated), and optional sheet_type, sheet_name,
// spreadsheet_id, mapping (inline definition override),
// template_protection, backup.
func (h *Handlers) ProcessDocument(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid multipart form",
			"details": err.Error(),
		})
		return
	}

	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "files is required (PDF or image)",
		})
		return
	}

	files := make([]ai.SourceFile, 0, len(uploads))
	for _, upload := range uploads {
		ext := strings.ToLower(filepath.Ext(upload.Filename))
		if !documentExtensions[ext] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("unsupported file type: %s (PDF/PNG/JPEGのみ対応)", upload.Filename),
			})
			return
		}

		path := filepath.Join(configs.UPLOAD_DIR, uuid.New().String()+ext)
		if err := c.SaveUploadedFile(upload, path); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "failed to store upload",
				"details": err.Error(),
			})
			return
		}
		defer os.Remove(path)
		files = append(files, ai.SourceFile{Name: upload.Filename, Path: path})
	}

	sheetType := c.PostForm("sheet_type")
	if sheetType == "" {
		sheetType = "アセスメントシート"
	}
	spreadsheetID := c.PostForm("spreadsheet_id")
	if spreadsheetID == "" {
		spreadsheetID = configs.ASSESSMENT_SHEET_ID
	}
	if spreadsheetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "spreadsheet_id is required (ASSESSMENT_SHEET_IDも未設定です)",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), runTimeout)
	defer cancel()

	result, err := h.Runner.RunDocument(ctx, pipeline.DocumentRequest{
		SheetType:          sheetType,
		Files:              files,
		MappingText:        c.PostForm("mapping"),
		SpreadsheetID:      spreadsheetID,
		SheetName:          c.PostForm("sheet_name"),
		TemplateProtection: formBool(c, "template_protection"),
		BackupSources:      formBool(c, "backup"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessAudio handles POST /api/v1/process/audio.
// Multipart fields: audio (file) or transcript (text), meeting_kind
// ("service" or "management"), plus the optional sheet fields.
func (h *Handlers) ProcessAudio(c *gin.Context) {
	kind, err := meetingKind(c.PostForm("meeting_kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := pipeline.AudioRequest{
		Kind:               kind,
		Transcript:         c.PostForm("transcript"),
		SpreadsheetID:      c.PostForm("spreadsheet_id"),
		SheetName:          c.PostForm("sheet_name"),
		TemplateProtection: formBool(c, "template_protection"),
	}

	if req.Transcript == "" {
		upload, err := c.FormFile("audio")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "audio file or transcript is required",
			})
			return
		}
		ext := strings.ToLower(filepath.Ext(upload.Filename))
		if !audioExtensions[ext] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("unsupported audio type: %s", upload.Filename),
			})
			return
		}

		path := filepath.Join(configs.UPLOAD_DIR, uuid.New().String()+ext)
		if err := c.SaveUploadedFile(upload, path); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "failed to store upload",
				"details": err.Error(),
			})
			return
		}
		defer os.Remove(path)
		req.AudioPath = path
		req.AudioName = upload.Filename
	}

	if req.SpreadsheetID == "" {
		if kind == ai.ManagementMeeting {
			req.SpreadsheetID = configs.MANAGEMENT_SHEET_ID
		} else {
			req.SpreadsheetID = configs.SERVICE_MEETING_SHEET_ID
		}
	}
	if req.SpreadsheetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "spreadsheet_id is required (シート種別のデフォルトIDも未設定です)",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), runTimeout)
	defer cancel()

	result, err := h.Runner.RunAudio(ctx, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecentRuns handles GET /api/v1/runs.
func (h *Handlers) RecentRuns(c *gin.Context) {
	if !storage.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "run history is disabled (ENABLE_RUN_HISTORY=false)",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := storage.RecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records, "count": len(records)})
}

func meetingKind(value string) (ai.MeetingKind, error) {
	switch value {
	case "", "service", "サービス担当者会議", "サービス担当者会議議事録":
		return ai.ServiceMeeting, nil
	case "management", "運営会議", "運営会議議事録":
		return ai.ManagementMeeting, nil
	default:
		return 0, fmt.Errorf("unknown meeting_kind: %q (service / management)", value)
	}
}

func formBool(c *gin.Context, field string) bool {
	v, _ := strconv.ParseBool(c.PostForm(field))
	return v
}
