// Package functions is the HTTP API of immotax.
//
// Every calculation is a function called with POST /functions/<name> and a
// JSON body. Entities are read and written under /entities/<Kind>. All
// routes but /healthz and /metrics require a bearer token.
package functions

import (
	"net/http"
	"time"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/filestore"
	"github.com/etnz/immotax/fx"
	"github.com/etnz/immotax/llm"
	"github.com/etnz/immotax/mail"
	"github.com/etnz/immotax/scheduler"
	"github.com/etnz/immotax/store"
	"github.com/etnz/immotax/webhook"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the services used by the API.
type Deps struct {
	Store     *store.Store
	Files     filestore.Store
	LLM       llm.Invoker // LLM is optional, the review of submissions is disabled without it.
	Mail      mail.Sender
	Webhooks  *webhook.Dispatcher
	Rates     fx.RateSource // Rates is optional, trades are not converted without it.
	Reminders *scheduler.Reminders
	Log       *zap.Logger
	Now       func() time.Time
	MaxUpload int64
}

// Server serves the API.
type Server struct {
	store     *store.Store
	ents      store.Entities
	files     filestore.Store
	llm       llm.Invoker
	mail      mail.Sender
	hooks     *webhook.Dispatcher
	rates     fx.RateSource
	reminders *scheduler.Reminders
	log       *zap.Logger
	now       func() time.Time
	maxUpload int64
}

// New returns a Server using the services of d.
func New(d Deps) *Server {
	s := &Server{
		store:     d.Store,
		ents:      d.Store.Entities(),
		files:     d.Files,
		llm:       d.LLM,
		mail:      d.Mail,
		hooks:     d.Webhooks,
		rates:     d.Rates,
		reminders: d.Reminders,
		log:       d.Log,
		now:       d.Now,
		maxUpload: d.MaxUpload,
	}
	if s.llm == nil {
		s.llm = llm.Disabled{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 20 << 20
	}
	if s.hooks == nil {
		s.hooks = webhook.NewDispatcher(s.ents.Webhooks, nil, webhook.Options{}, s.log)
	}
	if s.reminders == nil {
		s.reminders = &scheduler.Reminders{Entities: s.ents, Mail: s.mail, Log: s.log, Now: s.now}
	}
	return s
}

// today returns the current date.
func (s *Server) today() immotax.Date { return immotax.DateOf(s.now()) }

// Router returns the routes of the API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/", s.authenticate())
	{
		api.GET("/auth/me", s.me)

		fn := api.Group("/functions")
		{
			fn.POST("/calculateFIFO", s.function("calculateFIFO", s.calculateFIFO))
			fn.POST("/calculateFIFOGainLoss", s.function("calculateFIFOGainLoss", s.calculateFIFOGainLoss))
			fn.POST("/checkDuplicates", s.function("checkDuplicates", s.checkDuplicates))
			fn.POST("/validateElsterSubmission", s.function("validateElsterSubmission", s.validateElsterSubmission))
			fn.POST("/exportTaxData", s.function("exportTaxData", s.exportTaxData))
			fn.POST("/generateAnlageV", s.function("generateAnlageV", s.generateAnlageV))
			fn.POST("/generateGainsReport", s.function("generateGainsReport", s.generateGainsReport))
			fn.POST("/sendRentReminder", s.function("sendRentReminder", s.sendRentReminder))
			fn.POST("/generateRentReceipt", s.function("generateRentReceipt", s.generateRentReceipt))
			fn.POST("/rentStatus", s.function("rentStatus", s.rentStatus))
			fn.POST("/testWebhook", s.function("testWebhook", s.testWebhook))
		}

		entities := api.Group("/entities/:kind")
		{
			entities.GET("", s.listEntities)
			entities.POST("", s.createEntity)
			entities.GET("/:id", s.getEntity)
			entities.PUT("/:id", s.updateEntity)
			entities.DELETE("/:id", s.deleteEntity)
		}

		api.POST("/documents", s.uploadDocument)
		api.GET("/documents/:id/content", s.documentContent)
	}
	return router
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) me(c *gin.Context) {
	u := *currentUser(c)
	u.TokenHash = ""
	c.JSON(http.StatusOK, u)
}
