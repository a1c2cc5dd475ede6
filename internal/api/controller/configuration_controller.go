package controller

import (
	"net/http"

	"github.com/bassista/go_backoffice/internal/api/middleware"
	"github.com/bassista/go_backoffice/internal/config"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/gin-gonic/gin"
)

// ConfigurationResponse represents the configuration response structure for the API.
type ConfigurationResponse struct {
	DefaultPageSize int                     `json:"defaultPageSize"`
	MaxPageSize     int                     `json:"maxPageSize"`
	StaleTimeSec    int                     `json:"staleTimeSec"`
	SessionHeader   string                  `json:"sessionHeader"`
	Resources       []repository.Descriptor `json:"resources"`
}

// ResourceDescriber lists the resources served by the API.
type ResourceDescriber interface {
	Describe() []repository.Descriptor
}

// ConfigurationController handles configuration-related API endpoints.
type ConfigurationController struct {
	config    *config.Config
	resources ResourceDescriber
}

// NewConfigurationController creates a new ConfigurationController.
func NewConfigurationController(cfg *config.Config, resources ResourceDescriber) *ConfigurationController {
	return &ConfigurationController{
		config:    cfg,
		resources: resources,
	}
}

// GetConfiguration returns the list settings and resources for the frontend.
func (cc *ConfigurationController) GetConfiguration(c *gin.Context) {
	response := ConfigurationResponse{
		DefaultPageSize: cc.config.List.DefaultPageSize,
		MaxPageSize:     cc.config.List.MaxPageSize,
		StaleTimeSec:    int(cc.config.Cache.StaleTime.Seconds()),
		SessionHeader:   middleware.HeaderSessionID,
		Resources:       cc.resources.Describe(),
	}
	c.JSON(http.StatusOK, response)
}
