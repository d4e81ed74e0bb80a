package routes

import (
	"asset_gatepass_tool/app"
	"asset_gatepass_tool/controllers"
	"asset_gatepass_tool/models"
	"time"
)

func RegisterRoutes(r *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(r)
	reqCtl := controllers.NewRequestController(s)
	gateCtl := controllers.NewGateController(s)
	assetCtl := controllers.NewAssetController(s)
	userCtl := controllers.NewUserController(s)
	noteCtl := controllers.NewNotificationController(s)
	depCtl := controllers.NewDeploymentController(s)
	impCtl := controllers.NewImportController(s)
	setCtl := controllers.NewSettingController(s)
	inviteCtl := controllers.GetInviteController(s)

	// 复用的中间件
	authMW := app.AuthRequired(s.AppSess, s.Repo)
	adminMW := app.AdminOnly()
	gateMW := app.RoleRequired(models.RoleGuard, models.RoleAdmin)
	seenMW := app.TouchLastSeen(s.Repo, r.RDB, 5*time.Minute)

	e := r.Router

	// ------------------------------
	// WebAuthn（公开+受保护）
	// ------------------------------
	wa := e.Group("/webauthn")
	{
		wa.POST("/register/begin", s.BeginRegistration)
		wa.POST("/register/finish", s.FinishRegistration)

		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	waAuth := wa.Group("", authMW, seenMW)
	{
		waAuth.GET("/whoami", s.WhoAmI)
		waAuth.POST("/logout", s.Logout)
	}

	// 已登录用户添加新凭据（绑定手机等）
	creds := e.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// 邀请（仅管理员）
	// ------------------------------
	admin := e.Group("/admin", authMW, adminMW)
	{
		admin.POST("/invites", inviteCtl.CreateInvite)
	}

	// ------------------------------
	// 用户管理
	// ------------------------------
	me := e.Group("/api/me", authMW, seenMW)
	{
		me.PATCH("", userCtl.UpdateMe)
	}
	users := e.Group("/api/users", authMW, adminMW)
	{
		users.GET("", userCtl.List) // ?q=&page=&size=
		users.GET("/:id", userCtl.Get)
		users.PUT("/:id/role", userCtl.SetRole)
		users.PUT("/:id/active", userCtl.SetActive)
	}

	// ------------------------------
	// 资产
	// ------------------------------
	assets := e.Group("/api/assets", authMW, seenMW)
	{
		assets.GET("", assetCtl.List) // ?q=&status=&page=&size=
		assets.GET("/:id", assetCtl.Get)
	}
	assetsAdmin := e.Group("/api/assets", authMW, adminMW)
	{
		assetsAdmin.POST("", assetCtl.Create)
		assetsAdmin.POST("/:id/maintenance", assetCtl.Maintenance)
		assetsAdmin.GET("/ledger-check", assetCtl.LedgerCheck)
	}

	// ------------------------------
	// 借用请求（生命周期）
	// ------------------------------
	requests := e.Group("/api/requests", authMW, seenMW)
	{
		requests.POST("", reqCtl.Submit)
		requests.GET("", reqCtl.List) // ?status=&open=&page=&size=
		requests.GET("/:id", reqCtl.Get)
		requests.POST("/:id/cancel", reqCtl.Cancel)
		requests.POST("/:id/return", reqCtl.Return)
	}
	requestsAdmin := e.Group("/api/requests", authMW, adminMW)
	{
		requestsAdmin.POST("/:id/decision", reqCtl.Decide)
	}

	// ------------------------------
	// 闸机（门卫/管理员）
	// ------------------------------
	gate := e.Group("/api/gate", authMW, gateMW)
	{
		gate.POST("/resolve", gateCtl.Resolve)
		gate.POST("/:id/verify", gateCtl.Verify)
		gate.POST("/:id/deny", gateCtl.Deny)
		gate.GET("/:id/events", gateCtl.Events)
	}

	// ------------------------------
	// 部署（仅管理员）
	// ------------------------------
	deployments := e.Group("/api/deployments", authMW, adminMW)
	{
		deployments.POST("", depCtl.Create)
		deployments.GET("", depCtl.List)
		deployments.GET("/:id", depCtl.Get)
	}

	// ------------------------------
	// 通知
	// ------------------------------
	notes := e.Group("/api/notifications", authMW, seenMW)
	{
		notes.GET("", noteCtl.List)
		notes.POST("/:id/read", noteCtl.MarkRead)
		notes.POST("/read-all", noteCtl.MarkAllRead)
	}

	// ------------------------------
	// 配置项（仅管理员）
	// ------------------------------
	settings := e.Group("/api/settings", authMW, adminMW)
	{
		settings.GET("", setCtl.List)
		settings.GET("/:key", setCtl.Get)
		settings.PUT("/:key", setCtl.Put)
	}

	// ------------------------------
	// CSV 导入（仅管理员）
	// ------------------------------
	imports := e.Group("/api/import", authMW, adminMW)
	{
		imports.POST("/users", impCtl.Users)
		imports.POST("/assets", impCtl.Assets)
	}
}
