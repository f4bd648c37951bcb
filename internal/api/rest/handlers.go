package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/storage"
	"github.com/KevinKickass/OpenLadderCore/internal/types"
)

func (s *Server) getMonitor(c *gin.Context) {
	snap, err := s.core.Snapshot()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable,
			types.NewErrorResponse("no_program", "no program is running", nil))
		return
	}
	c.Data(http.StatusOK, "application/json", snap)
}

func (s *Server) getOneWire(c *gin.Context) {
	report, err := s.core.OneWireReport()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable,
			types.NewErrorResponse("no_program", "no program is running", nil))
		return
	}
	c.Data(http.StatusOK, "application/json", report)
}

func (s *Server) getConfig(c *gin.Context) {
	blob, err := s.core.ConfigBlob()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound,
				types.NewErrorResponse("not_found", "no configuration stored", nil))
			return
		}
		s.logger.Error("failed to load stored config", zap.Error(err))
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("storage_error", "failed to load configuration", nil))
		return
	}
	c.Data(http.StatusOK, "application/json", blob)
}

// postConfig feeds the body to the ingestor as a single chunk. Whether
// it applies is decided there; rejected documents keep the previous
// program running, so the API only acknowledges receipt.
func (s *Server) postConfig(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge,
			types.NewErrorResponse("too_large", "configuration document over limit", nil))
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest,
			types.NewErrorResponse("empty_body", "configuration document missing", nil))
		return
	}
	s.core.Ingest(body)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
