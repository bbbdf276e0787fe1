package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"

	"github.com/kwitter-app/kwitter/cache"
	"github.com/kwitter-app/kwitter/feed"
	"github.com/kwitter-app/kwitter/server"
	"github.com/kwitter-app/kwitter/server/middlewares"
	"github.com/kwitter-app/kwitter/store"
	. "github.com/kwitter-app/kwitter/utils"
	"github.com/kwitter-app/kwitter/utils/dotenv"
	. "github.com/kwitter-app/kwitter/utils/flag"
	. "github.com/kwitter-app/kwitter/utils/log"
)

func cleanup() {
	CloseProfiler()
	CloseTracer()
	Log.Info("api server shutdown")
}

func main() {
	defer cleanup()

	flag.Parse()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	// Rebuild the logger now that the service flag is parsed; the init-time
	// logger only carries defaults.
	InitLogger()

	InitTracer()
	InitProfiler()

	db, err := GetDBConnection()
	if err != nil {
		Log.Fatal("cannot connect to DB: ", err)
	}
	DatabaseSetupAndMigration(db)

	postStore := store.NewGormPostStore(db)
	profileStore := store.NewGormProfileStore(db)
	repo := feed.NewRepository(postStore)

	// Redis is optional: without it sessions simply start cold and store
	// outages serve empty instead of stale.
	var snapshots *cache.FeedSnapshotStore
	if rdb, err := cache.GetRedisClient(context.Background()); err != nil {
		Log.Warn("redis unavailable, feed snapshots disabled: ", err)
	} else {
		snapshots = cache.NewFeedSnapshotStore(rdb)
	}

	sessions := server.NewSessionManager(repo, profileStore, snapshots)
	handlers := server.NewAPIHandlers(repo, sessions)

	middlewares.Setup(profileStore)

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()

	router.Use(cors.Default())
	router.Use(gintrace.Middleware(ServiceName))
	if !ByPassAuth {
		router.Use(middlewares.ViewerResolution())
	}

	handlers.Register(router)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	Log.Info("api server starts up")
	router.Run(":8080")
}
