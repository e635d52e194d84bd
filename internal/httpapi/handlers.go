package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"autopub/internal/backend"
	"autopub/internal/dispatch"
	"autopub/internal/platform"
	"autopub/internal/stage"
	"autopub/internal/status"
	"autopub/pkg/logx"
)

// Stager is the staging surface the upload handler needs.
type Stager interface {
	Stage(files []stage.File) (paths []string, cleanup func(), err error)
}

type loginRequest struct {
	Platform    string `json:"platform" binding:"required"`
	AccountName string `json:"account_name" binding:"required"`
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	// The job itself resolves the platform; an unknown one surfaces as a
	// failed status. Submission never blocks on the backend.
	taskID := s.disp.SubmitLogin(c.Request.Context(), req.Platform, req.AccountName, req.PhoneNumber)
	c.JSON(http.StatusAccepted, gin.H{
		"task_id": taskID,
		"message": fmt.Sprintf("login started for account %s on %s", req.AccountName, req.Platform),
	})
}

func (s *Server) handleLoginStatus(c *gin.Context) {
	taskID := c.Query("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "task_id is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"status":  formatStatus(s.statuses.Get(taskID)),
	})
}

// formatStatus renders a status the way pollers expect: the bare state name,
// except failures which carry their reason inline.
func formatStatus(st status.Status) string {
	if st.State == status.StateFailed && st.Err != "" {
		return "failed: " + st.Err
	}
	return string(st.State)
}

func (s *Server) handleUpload(c *gin.Context) {
	plat := c.PostForm("platform")
	account := c.PostForm("account_name")
	if plat == "" || account == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "platform and account_name are required"})
		return
	}

	kind, err := mediaKind(c.DefaultPostForm("upload_type", "video"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	publishType, err := strconv.Atoi(c.DefaultPostForm("publish_type", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "publish_type must be an integer"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "at least one file is required"})
		return
	}

	var files []stage.File
	var closers []io.Closer
	defer func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("open upload %s: %v", fh.Filename, err)})
			return
		}
		closers = append(closers, f)
		files = append(files, stage.File{Name: fh.Filename, Reader: f})
	}

	caption, err := readCaption(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	paths, cleanup, err := s.stager.Stage(files)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	defer cleanup()

	payload, err := stage.BuildPayload(kind, paths, caption, publishType, c.PostForm("schedule"), c.PostForm("location"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	jobID := uuid.NewString()
	err = s.disp.SubmitPublish(c.Request.Context(), dispatch.PublishRequest{
		JobID:    jobID,
		Platform: plat,
		Account:  account,
		Payload:  payload,
	})
	if err != nil {
		s.log.Warn("upload rejected",
			logx.String("job", jobID),
			logx.String("platform", plat),
			logx.Err(err))
		var pubErr *dispatch.PublishError
		switch {
		case errors.Is(err, platform.ErrUnsupported), errors.Is(err, backend.ErrInvalidPayload):
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		case errors.As(err, &pubErr):
			c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id": jobID,
		"message": fmt.Sprintf("published for account %s on %s", account, plat),
	})
}

func mediaKind(uploadType string) (backend.MediaKind, error) {
	switch uploadType {
	case "video":
		return backend.KindVideo, nil
	case "image":
		return backend.KindImage, nil
	default:
		return "", fmt.Errorf("unknown upload_type %q", uploadType)
	}
}

// readCaption returns the text_file content, or empty when the part is absent.
func readCaption(c *gin.Context) (string, error) {
	fh, err := c.FormFile("text_file")
	if err != nil {
		// absent part
		return "", nil
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open text_file: %w", err)
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read text_file: %w", err)
	}
	return string(b), nil
}
