// Package file provides HTTP handlers for job attachments kept in object storage.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/repository"
	"Fixer-backend/internal/storage"
	"Fixer-backend/internal/utilities"
)

const attachmentObjectPrefix = "jobs"

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".pdf":  "application/pdf",
}

// FileController handles job attachment endpoints
type FileController struct {
	Store     *repository.Store
	Storage   storage.Store
	MaxBytes  int64
	URLExpiry time.Duration
	Log       logger.Logger
}

// NewFileController creates a new instance of FileController. A nil storage
// disables uploads.
func NewFileController(store *repository.Store, st storage.Store, maxBytes int64, urlExpiry time.Duration, log logger.Logger) *FileController {
	if urlExpiry <= 0 {
		urlExpiry = 15 * time.Minute
	}
	return &FileController{
		Store:     store,
		Storage:   st,
		MaxBytes:  maxBytes,
		URLExpiry: urlExpiry,
		Log:       log,
	}
}

// AttachmentResponse is an attachment with a time limited download link.
type AttachmentResponse struct {
	model.Attachment
	URL string `json:"url,omitempty"`
}

// participant loads the job and checks the caller is its poster or assigned worker.
func (fc *FileController) participant(ctx context.Context, caller model.CallerIdentity, jobID uint) (*model.Job, error) {
	job, err := fc.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != caller.UserID && !job.AssignedTo(caller.UserID) && !caller.IsAdmin() {
		return nil, apperror.Authorization("only the poster and the assigned worker can access attachments of job %d", jobID)
	}
	return job, nil
}

func (fc *FileController) disabled(c *gin.Context) bool {
	if fc.Storage != nil {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, utilities.ErrorResponse{
		Error: "Attachment storage is disabled",
		Code:  string(apperror.CodeServiceUnavailable),
	})
	return true
}

// UploadAttachment stores a photo or document for a job.
// @Summary Upload job attachment
// @Description Only the poster and the assigned worker can upload. Accepts jpg, png, webp, heic and pdf.
// @Tags Attachment
// @Accept multipart/form-data
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Param file formData file true "Attachment"
// @Success 201 {object} AttachmentResponse "Stored attachment"
// @Failure 400 {object} utilities.ErrorResponse "Missing file"
// @Failure 403 {object} utilities.ErrorResponse "Not a participant of the job"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Failure 413 {object} utilities.ErrorResponse "File too large"
// @Failure 415 {object} utilities.ErrorResponse "Unsupported file extension"
// @Failure 503 {object} utilities.ErrorResponse "Storage disabled"
// @Router /jobs/{id}/attachments [post]
func (fc *FileController) UploadAttachment(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	if fc.disabled(c) {
		return
	}
	jobID, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := fc.participant(ctx, caller, jobID); err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}

	rawFile, err := c.FormFile("file")
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		c.JSON(http.StatusRequestEntityTooLarge, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		utilities.RespondError(c, fc.Log, apperror.Validation("Failed to retrieve file: %s", err.Error()))
		return
	}
	if fc.MaxBytes > 0 && rawFile.Size > fc.MaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, utilities.ErrorResponse{
			Error: fmt.Sprintf("File is larger than %d bytes", fc.MaxBytes),
		})
		return
	}

	extension := strings.ToLower(filepath.Ext(rawFile.Filename))
	contentType, ok := contentTypes[extension]
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, utilities.ErrorResponse{
			Error: fmt.Sprintf("Unsupported file extension: %s", extension),
		})
		return
	}

	f, err := rawFile.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{Error: "Cannot open file"})
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			fc.Log.Warn("failed to close uploaded file", map[string]interface{}{"error": err.Error()})
		}
	}()

	objectKey := fmt.Sprintf("%s/%d/%s%s", attachmentObjectPrefix, jobID, uuid.NewString(), extension)
	if err := fc.Storage.Put(ctx, objectKey, f, rawFile.Size, contentType); err != nil {
		fc.Log.WithError(err).Error("failed to store attachment", map[string]interface{}{"job_id": jobID})
		c.JSON(http.StatusBadGateway, utilities.ErrorResponse{
			Error: "Failed to store attachment",
			Code:  string(apperror.CodeGatewayUnavailable),
		})
		return
	}

	attachment := model.Attachment{
		JobID:       jobID,
		UploaderID:  caller.UserID,
		ObjectKey:   objectKey,
		FileName:    filepath.Base(rawFile.Filename),
		ContentType: contentType,
		Size:        rawFile.Size,
	}
	if err := fc.Store.CreateAttachment(ctx, &attachment); err != nil {
		if delErr := fc.Storage.Delete(ctx, objectKey); delErr != nil {
			fc.Log.Warn("failed to remove orphaned attachment", map[string]interface{}{
				"object_key": objectKey,
				"error":      delErr.Error(),
			})
		}
		utilities.RespondError(c, fc.Log, err)
		return
	}

	c.JSON(http.StatusCreated, fc.withURL(ctx, attachment))
}

// ListAttachments returns the job's attachments with download links.
// @Summary List job attachments
// @Tags Attachment
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Success 200 {array} AttachmentResponse "Attachments, oldest first"
// @Failure 403 {object} utilities.ErrorResponse "Not a participant of the job"
// @Failure 404 {object} utilities.ErrorResponse "Job not found"
// @Router /jobs/{id}/attachments [get]
func (fc *FileController) ListAttachments(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	if fc.disabled(c) {
		return
	}
	jobID, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := fc.participant(ctx, caller, jobID); err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}

	attachments, err := fc.Store.ListAttachments(ctx, jobID)
	if err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}
	out := make([]AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, fc.withURL(ctx, a))
	}
	c.JSON(http.StatusOK, out)
}

// GetAttachment streams one attachment.
// @Summary Download job attachment
// @Tags Attachment
// @Produce octet-stream
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Job ID"
// @Param attachment_id path int true "Attachment ID"
// @Success 200 {string} binary "Attachment content"
// @Failure 403 {object} utilities.ErrorResponse "Not a participant of the job"
// @Failure 404 {object} utilities.ErrorResponse "Attachment not found"
// @Router /jobs/{id}/attachments/{attachment_id} [get]
func (fc *FileController) GetAttachment(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	if fc.disabled(c) {
		return
	}
	jobID, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}
	attachmentID, err := utilities.ParseID(c, "attachment_id")
	if err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := fc.participant(ctx, caller, jobID); err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}

	attachment, err := fc.Store.GetAttachment(ctx, attachmentID)
	if err != nil {
		utilities.RespondError(c, fc.Log, err)
		return
	}
	if attachment.JobID != jobID {
		utilities.RespondError(c, fc.Log, apperror.NotFound("attachment", attachmentID))
		return
	}

	fc.writeFileResponse(c, attachment)
}

func (fc *FileController) withURL(ctx context.Context, a model.Attachment) AttachmentResponse {
	resp := AttachmentResponse{Attachment: a}
	link, err := fc.Storage.URL(ctx, a.ObjectKey, fc.URLExpiry)
	if err != nil {
		fc.Log.Warn("failed to sign attachment url", map[string]interface{}{
			"attachment_id": a.ID,
			"error":         err.Error(),
		})
		return resp
	}
	resp.URL = link
	return resp
}

func (fc *FileController) writeFileResponse(c *gin.Context, a *model.Attachment) {
	reader, size, err := fc.Storage.Get(c.Request.Context(), a.ObjectKey)
	if errors.Is(err, storage.ErrNotFound) {
		utilities.RespondError(c, fc.Log, apperror.NotFound("attachment", a.ID))
		return
	}
	if err != nil {
		fc.Log.WithError(err).Error("failed to download attachment", map[string]interface{}{"attachment_id": a.ID})
		c.JSON(http.StatusBadGateway, utilities.ErrorResponse{
			Error: "Failed to download file from storage",
			Code:  string(apperror.CodeGatewayUnavailable),
		})
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			fc.Log.Warn("failed to close storage reader", map[string]interface{}{"error": err.Error()})
		}
	}()

	c.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.FileName))
	c.Writer.Header().Set("Content-Type", a.ContentType)
	if size > 0 {
		c.Writer.Header().Set("Content-Length", fmt.Sprint(size))
	}
	if _, err := io.Copy(c.Writer, reader); err != nil {
		fc.handleWriterError(c, err)
	}
}

func (fc *FileController) handleWriterError(c *gin.Context, err error) {
	fc.Log.Debug("failed to send attachment", map[string]interface{}{"error": err.Error()})
	if !c.Writer.Written() {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: "Failed to send file content",
		})
	} else {
		c.Abort()
	}
}
