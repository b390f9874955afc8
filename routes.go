package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/models"
	"goat-backend/services"
)

const curatorRole = "curator"

// api bündelt die Services, die die HTTP-Handler brauchen.
type api struct {
	Config       *config.Config
	Logger       *zap.Logger
	Resolver     *services.LocusResolver
	Submissions  *services.SubmissionService
	Curation     *services.CurationService
	Publications *services.PublicationService
	Drafts       *services.DraftService
	Keywords     *services.KeywordService
}

func newRouter(a *api) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(a.Config.CORSOrigin, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/annotation-types", func(c *gin.Context) {
		c.JSON(http.StatusOK, services.AnnotationTypes())
	})
	router.GET("/annotation-status", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.AnnotationStatuses)
	})

	authed := router.Group("/", authMiddleware(a.Config))
	setupSubmissionRoutes(authed, a)
	setupLocusRoutes(authed, a)
	setupPublicationRoutes(authed, a)
	setupDraftRoutes(authed, a)
	setupKeywordRoutes(authed, a)
	return router
}

func authMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		jwtKey := []byte(cfg.JWTSecret)
		if len(jwtKey) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "JWT secret not configured"})
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token malformed"})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		userID, ok := claims["user_id"].(float64)
		if !ok || userID < 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		c.Set("user_id", uint(userID))
		if role, ok := claims["role"].(string); ok {
			c.Set("role", role)
		}
		c.Next()
	}
}

func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Role not found in token"})
			return
		}
		if value != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}

// respondError übersetzt Service-Fehler in HTTP-Status. Interne Details bleiben im Log.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindValidation, services.KindReference:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindConflict:
		status = http.StatusConflict
	case services.KindLookupTransport:
		status = http.StatusBadGateway
	case services.KindForbidden:
		status = http.StatusForbidden
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": services.PublicMessage(err)})
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func setupSubmissionRoutes(router *gin.RouterGroup, a *api) {
	rg := router.Group("/submission")
	log := a.Logger.With(zap.String("routes", "submission"))

	rg.POST("", func(c *gin.Context) {
		var req services.SubmissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		sub, err := a.Submissions.Submit(c.Request.Context(), c.GetUint("user_id"), req)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": sub.ID})
	})

	rg.GET("", requireRole(curatorRole), func(c *gin.Context) {
		page, _ := strconv.Atoi(c.Query("page"))
		limit, _ := strconv.Atoi(c.Query("limit"))
		summaries, err := a.Submissions.List(c.Request.Context(), page, limit)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, summaries)
	})

	rg.GET("/:id", requireRole(curatorRole), func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		sub, err := a.Submissions.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, sub)
	})

	rg.PUT("/:id", requireRole(curatorRole), func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req services.CurationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := a.Curation.Curate(c.Request.Context(), id, c.GetUint("user_id"), req); err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

func setupLocusRoutes(router *gin.RouterGroup, a *api) {
	log := a.Logger.With(zap.String("routes", "locus"))
	router.GET("/locus/:name", func(c *gin.Context) {
		record, err := a.Resolver.Resolve(c.Request.Context(), c.Param("name"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, record)
	})
}

func setupPublicationRoutes(router *gin.RouterGroup, a *api) {
	log := a.Logger.With(zap.String("routes", "publication"))
	router.POST("/publication", func(c *gin.Context) {
		var body struct {
			PublicationID string `json:"publication_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.PublicationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "publication_id required"})
			return
		}
		record, err := a.Publications.Validate(c.Request.Context(), body.PublicationID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, record)
	})
}

func setupDraftRoutes(router *gin.RouterGroup, a *api) {
	rg := router.Group("/draft")
	log := a.Logger.With(zap.String("routes", "draft"))

	rg.GET("", func(c *gin.Context) {
		drafts, err := a.Drafts.List(c.Request.Context(), c.GetUint("user_id"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, drafts)
	})

	rg.POST("", func(c *gin.Context) {
		var body struct {
			WipState json.RawMessage `json:"wip_state"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Draft (wip state) is missing or invalid"})
			return
		}
		draft, err := a.Drafts.Create(c.Request.Context(), c.GetUint("user_id"), body.WipState)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, draft)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		draft, err := a.Drafts.Delete(c.Request.Context(), c.GetUint("user_id"), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, draft)
	})
}

func setupKeywordRoutes(router *gin.RouterGroup, a *api) {
	log := a.Logger.With(zap.String("routes", "keyword"))

	router.GET("/keyword-type", func(c *gin.Context) {
		types, err := a.Keywords.ListKeywordTypes(c.Request.Context())
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, types)
	})

	router.GET("/keyword-temp", requireRole(curatorRole), func(c *gin.Context) {
		temps, err := a.Keywords.ListKeywordTemps(c.Request.Context())
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, temps)
	})
}
