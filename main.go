package main

import (
	"asset_gatepass_tool/app"
	"asset_gatepass_tool/config"
	"asset_gatepass_tool/controllers"
	"asset_gatepass_tool/routes"
	"context"
	"log"
	"os"
)

func main() {
	config.LoadEnv()

	application := app.MustNew()
	defer application.Close()

	r := application.Router

	// Health
	r.GET("/healthz", func(c *app.Ctx) { c.JSON(200, app.H{"ok": true}) })

	routes.RegisterRoutes(application)

	// 首次启动：没有管理员就发一张 bootstrap 邀请
	srv := controllers.GetSrv(application)
	app.BootstrapFirstAdmin(context.Background(), application.Config, srv.Repo)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	log.Printf("listening on :%s", port)
	_ = r.Run(":" + port)
}
