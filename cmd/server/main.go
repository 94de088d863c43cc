package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"micronet/internal/agglomerate"
	"micronet/internal/graph"
	"micronet/internal/locks"
	"micronet/internal/setalgebra"
	"micronet/internal/taxonomy"
	"micronet/pkg/config"
	"micronet/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting micronet API server...")

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver, cfg.Neo4jDatabase, cfg.BatchSize)
	repo.EnsureSchema(ctx)

	// Advisory network locks: shared via Redis when configured,
	// process-local otherwise
	var locker locks.Locker = locks.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		locker = locks.NewRedisLocker(client, time.Duration(cfg.LockTTLSeconds)*time.Second)
		log.Info("Using Redis network locks", zap.String("addr", cfg.RedisAddr))
	}

	agglomerator := agglomerate.NewEngine(repo, locker, cfg.MaxMergeIterations)
	algebra := setalgebra.NewEngine(repo)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		api.GET("/networks", func(c *gin.Context) {
			networks, err := repo.ListNetworks(c.Request.Context())
			if err != nil {
				log.Error("Failed to list networks", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list networks"})
				return
			}
			c.JSON(http.StatusOK, networks)
		})

		api.GET("/networks/:name/stats", func(c *gin.Context) {
			stats, err := repo.GetNetworkStats(c.Request.Context(), c.Param("name"))
			if err != nil {
				log.Error("Failed to read network stats", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read stats"})
				return
			}
			c.JSON(http.StatusOK, stats)
		})

		api.DELETE("/networks/:name", func(c *gin.Context) {
			if err := repo.DeleteNetwork(c.Request.Context(), c.Param("name")); err != nil {
				log.Error("Failed to delete network", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete network"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		api.POST("/agglomerate", func(c *gin.Context) {
			var req struct {
				Networks  []string `json:"networks" binding:"required"`
				Level     string   `json:"level" binding:"required"`
				UseWeight bool     `json:"use_weight"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			level, err := taxonomy.Parse(req.Level)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			results, err := agglomerator.Agglomerate(c.Request.Context(), req.Networks, level, req.UseWeight)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, results)
		})

		api.GET("/sets", func(c *gin.Context) {
			sets, err := repo.ListSets(c.Request.Context())
			if err != nil {
				log.Error("Failed to list sets", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sets"})
				return
			}
			c.JSON(http.StatusOK, sets)
		})

		api.POST("/sets/union", func(c *gin.Context) {
			var req struct {
				Networks []string `json:"networks" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			info, err := algebra.Union(c.Request.Context(), req.Networks)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, info)
		})

		api.POST("/sets/intersection", func(c *gin.Context) {
			var req struct {
				Networks  []string `json:"networks" binding:"required"`
				Fraction  float64  `json:"fraction" binding:"required"`
				UseWeight bool     `json:"use_weight"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			info, err := algebra.Intersection(c.Request.Context(), req.Networks, req.Fraction, req.UseWeight)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, info)
		})

		api.POST("/sets/difference", func(c *gin.Context) {
			var req struct {
				Networks  []string `json:"networks" binding:"required"`
				UseWeight bool     `json:"use_weight"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			info, err := algebra.Difference(c.Request.Context(), req.Networks, req.UseWeight)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, info)
		})

		api.GET("/taxa/:name/provenance", func(c *gin.Context) {
			originals, err := repo.TraceProvenance(c.Request.Context(), c.Param("name"))
			if err != nil {
				log.Error("Failed to trace provenance", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trace provenance"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"taxon": c.Param("name"), "originals": originals})
		})
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
}

// ginLogger adapts zap to gin's middleware interface
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
