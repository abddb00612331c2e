package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/services"
	"healthcare-companion-server/internal/utils"
)

// ReportHandler handles health report uploads and downloads.
type ReportHandler struct {
	Reports *services.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{Reports: reports}
}

// UploadReport accepts a multipart form with "file", "title" and
// "reportType" fields.
func (h *ReportHandler) UploadReport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "Error retrieving file from form: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxReportSize+1))
	if err != nil {
		utils.InternalServerError(c, "Error reading file content")
		return
	}

	in := services.UploadReportInput{
		Title:      c.PostForm("title"),
		ReportType: models.ReportType(c.PostForm("reportType")),
		FileName:   header.Filename,
		FileType:   contentType(header.Header.Get("Content-Type")),
		Data:       data,
	}
	report, err := h.Reports.Upload(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Created(c, "Report uploaded successfully", report)
}

// contentType strips parameters such as charset from a MIME type.
func contentType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.TrimSpace(v)
	}
	return mt
}

// GetReports lists report metadata; doctors pass ?patientId=.
func (h *ReportHandler) GetReports(c *gin.Context) {
	list, err := h.Reports.List(c.Request.Context(), callerFrom(c), c.Query("patientId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Reports fetched successfully", list)
}

// DownloadReport serves the stored file as an attachment.
func (h *ReportHandler) DownloadReport(c *gin.Context) {
	r, err := h.Reports.Download(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.FileName))
	c.Data(http.StatusOK, r.FileType, r.FileData)
}
