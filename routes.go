package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"article-gate/config"
	"article-gate/models"
	"article-gate/services"
	"article-gate/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

const welcomeMsg = "Welcome to ArticleGate Web-app! " +
	"Store and retrieve information about scientific articles."

func newRouter(cfg *config.Config, store *storage.Store, gate *services.AuthGate, s3Client *awss3.Client, log *zap.Logger) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupReadRoutes(router, store, log)
	setupAuthRoutes(router, cfg, gate, log)

	protected := router.Group("/")
	protected.Use(sessionRequired(cfg, gate))
	setupCreateRoutes(protected, store, log)
	setupAlterRoutes(protected, store, log)
	setupDeleteRoutes(protected, store, log)
	setupExportRoutes(protected, cfg, store, s3Client, log)

	return router
}

// sessionRequired lehnt Requests ohne gültiges Session-Cookie ab, bevor
// irgendeine Store- oder Regel-Arbeit passiert.
func sessionRequired(cfg *config.Config, gate *services.AuthGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cfg.SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		if _, err := gate.Verify(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		c.Next()
	}
}

// respondStoreError bildet die typisierten Store-Fehler auf HTTP-Status ab.
func respondStoreError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, storage.ErrReferenced),
		errors.Is(err, storage.ErrMissingReference):
		c.JSON(http.StatusNotAcceptable, gin.H{"error": err.Error()})
	default:
		log.Error("Database operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
	}
}

type idQuery struct {
	ID *int `form:"id" binding:"required"`
}

type doiQuery struct {
	DOI string `form:"doi" binding:"required"`
}

type bindingQuery struct {
	DOI      string `form:"doi" binding:"required"`
	AuthorID *int   `form:"author_id" binding:"required"`
}

func bindIDQuery(c *gin.Context) (int, bool) {
	var q idQuery
	if err := c.ShouldBindQuery(&q); err != nil || *q.ID < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "query parameter 'id' must be a non-negative integer"})
		return 0, false
	}
	return *q.ID, true
}

func setupReadRoutes(router *gin.Engine, store *storage.Store, log *zap.Logger) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ServiceInfo": welcomeMsg})
	})

	router.GET("/author", func(c *gin.Context) {
		id, ok := bindIDQuery(c)
		if !ok {
			return
		}
		author, err := store.GetAuthor(id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Lesepfad: fehlende Zeile ergibt null, keinen 404
				c.JSON(http.StatusOK, nil)
				return
			}
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, author)
	})

	router.GET("/article", func(c *gin.Context) {
		var q doiQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "query parameter 'doi' is required"})
			return
		}
		article, err := store.GetArticle(q.DOI)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusOK, nil)
				return
			}
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, article)
	})

	router.GET("/org", func(c *gin.Context) {
		id, ok := bindIDQuery(c)
		if !ok {
			return
		}
		org, err := store.GetOrganisation(id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusOK, nil)
				return
			}
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, org)
	})

	router.GET("/articles_by_author", func(c *gin.Context) {
		id, ok := bindIDQuery(c)
		if !ok {
			return
		}
		bindings, err := store.BindingsByAuthor(id)
		if err != nil {
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, bindings)
	})

	router.GET("/authors_of_article", func(c *gin.Context) {
		var q doiQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "query parameter 'doi' is required"})
			return
		}
		placements, err := store.AuthorsOfArticle(q.DOI)
		if err != nil {
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, placements)
	})
}

func setupAuthRoutes(router *gin.Engine, cfg *config.Config, gate *services.AuthGate, log *zap.Logger) {
	router.POST("/auth", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "username and password are required"})
			return
		}

		token, err := gate.Login(req.Username, req.Password)
		if err != nil {
			log.Warn("Admin login rejected", zap.String("username", req.Username))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		c.SetCookie(cfg.SessionCookie, token, int(gate.TTL().Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"token": token})
	})
}

func setupCreateRoutes(rg *gin.RouterGroup, store *storage.Store, log *zap.Logger) {
	group := rg.Group("/create")

	group.POST("/article", func(c *gin.Context) {
		var article models.Article
		if err := c.ShouldBindJSON(&article); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
			return
		}
		if err := article.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := store.CreateArticle(&article); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("article", "create").Inc()
		log.Info("Article created", zap.String("doi", article.DOI))
		c.JSON(http.StatusOK, article)
	})

	group.POST("/org", func(c *gin.Context) {
		var org models.Organisation
		if err := c.ShouldBindJSON(&org); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
			return
		}
		if err := org.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := store.CreateOrganisation(&org); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("organisation", "create").Inc()
		log.Info("Organisation created", zap.Int("id", org.ID))
		c.JSON(http.StatusOK, org)
	})

	group.POST("/author", func(c *gin.Context) {
		var author models.Author
		if err := c.ShouldBindJSON(&author); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
			return
		}
		if err := author.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := store.CreateAuthor(&author); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("author", "create").Inc()
		log.Info("Author created", zap.Int("id", author.ID))
		c.JSON(http.StatusOK, author)
	})

	group.POST("/article_to_author", func(c *gin.Context) {
		var binding models.ArticleToAuthor
		if err := c.ShouldBindJSON(&binding); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
			return
		}
		if err := binding.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := store.CreateBinding(&binding); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("binding", "create").Inc()
		log.Info("Author binding created", zap.String("doi", binding.DOI), zap.Int("author_id", binding.AuthorID))
		c.JSON(http.StatusOK, binding)
	})
}

func setupAlterRoutes(rg *gin.RouterGroup, store *storage.Store, log *zap.Logger) {
	group := rg.Group("/alter")

	group.POST("/article", func(c *gin.Context) {
		var article models.Article
		if err := c.ShouldBindJSON(&article); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
			return
		}
		if err := article.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := store.AlterArticle(&article); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("article", "alter").Inc()
		c.JSON(http.StatusOK, article)
	})

	group.POST("/author", func(c *gin.Context) {
		var author models.Author
		if err := c.ShouldBindJSON(&author); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
			return
		}
		if err := author.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := store.AlterAuthor(&author); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("author", "alter").Inc()
		c.JSON(http.StatusOK, author)
	})

	group.POST("/org", func(c *gin.Context) {
		var org models.Organisation
		if err := c.ShouldBindJSON(&org); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
			return
		}
		if err := org.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err := store.AlterOrganisation(&org); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("organisation", "alter").Inc()
		c.JSON(http.StatusOK, org)
	})

	group.POST("/article_to_author", func(c *gin.Context) {
		var binding models.ArticleToAuthor
		if err := c.ShouldBindJSON(&binding); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
			return
		}
		if err := binding.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		// Ziel über (doi, author_id); nur place ist veränderbar
		if err := store.AlterBinding(binding.DOI, binding.AuthorID, binding.Place); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("binding", "alter").Inc()
		c.JSON(http.StatusOK, binding)
	})
}

func setupDeleteRoutes(rg *gin.RouterGroup, store *storage.Store, log *zap.Logger) {
	group := rg.Group("/delete")

	group.DELETE("/org", func(c *gin.Context) {
		id, ok := bindIDQuery(c)
		if !ok {
			return
		}
		if err := store.DeleteOrganisation(id); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("organisation", "delete").Inc()
		log.Info("Organisation deleted", zap.Int("id", id))
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})

	group.DELETE("/author", func(c *gin.Context) {
		id, ok := bindIDQuery(c)
		if !ok {
			return
		}
		if err := store.DeleteAuthor(id); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("author", "delete").Inc()
		log.Info("Author deleted", zap.Int("id", id))
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})

	group.DELETE("/article", func(c *gin.Context) {
		var q doiQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "query parameter 'doi' is required"})
			return
		}
		if err := store.DeleteArticle(q.DOI); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("article", "delete").Inc()
		log.Info("Article deleted", zap.String("doi", q.DOI))
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})

	group.DELETE("/binding", func(c *gin.Context) {
		var q bindingQuery
		if err := c.ShouldBindQuery(&q); err != nil || *q.AuthorID < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "query parameters 'doi' and non-negative 'author_id' are required"})
			return
		}
		if err := store.DeleteBinding(q.DOI, *q.AuthorID); err != nil {
			respondStoreError(c, log, err)
			return
		}
		mutationsCounter.WithLabelValues("binding", "delete").Inc()
		log.Info("Author binding deleted", zap.String("doi", q.DOI), zap.Int("author_id", *q.AuthorID))
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})
}

func setupExportRoutes(rg *gin.RouterGroup, cfg *config.Config, store *storage.Store, s3Client *awss3.Client, log *zap.Logger) {
	rg.POST("/export", func(c *gin.Context) {
		if s3Client == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot export is not configured"})
			return
		}

		snap, err := store.ExportAll()
		if err != nil {
			respondStoreError(c, log, err)
			return
		}
		data, err := json.Marshal(snap)
		if err != nil {
			log.Error("Failed to marshal snapshot", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build snapshot"})
			return
		}

		key := fmt.Sprintf("article-gate-%s.json", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
		link, err := storage.UploadSnapshot(c.Request.Context(), s3Client, cfg, key, data)
		if err != nil {
			log.Error("Snapshot upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot upload failed"})
			return
		}

		log.Info("Snapshot exported",
			zap.String("key", key),
			zap.Int("organisations", len(snap.Organisations)),
			zap.Int("authors", len(snap.Authors)),
			zap.Int("articles", len(snap.Articles)),
			zap.Int("bindings", len(snap.Bindings)),
		)
		c.JSON(http.StatusOK, gin.H{"snapshot": link})
	})
}
