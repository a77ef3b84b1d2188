package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/cubattendance/attendance"
	"github.com/cubattendance/attendance/api/middleware"
	"github.com/cubattendance/attendance/config"
)

type Api struct {
	attendance *attendance.Attendance
	router     *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	v1 := router.Group("/v1")
	v1.POST("/auth/google", a.GoogleAuth)

	secured := v1.Group("")
	secured.Use(middleware.JWTAuthMiddleware(a.attendance))
	secured.POST("/sign-in", a.SignIn)
	secured.POST("/sign-out", a.SignOut)
	secured.GET("/settings", a.GetSettings)
	secured.POST("/settings", a.SaveSettings)
	secured.GET("/names", a.GetNames)
	secured.GET("/tasks/:id", a.GetTask)
	return a.router
}

func corsConfig(conf *config.Configuration) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	if len(conf.Server.AllowedOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = conf.Server.AllowedOrigins
	}
	return c
}

func NewAPI(a *attendance.Attendance) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(cors.New(corsConfig(conf)))
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{attendance: a, router: r}
}
