package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.AuthMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.AuthMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.AuthMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireBearer())...))

	s.RegisterRouteFunc("GET "+RouteSecurityDevices, ChainMiddleware(s.DevicesHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("DELETE "+RouteSecurityDevices, ChainMiddleware(s.TerminateOthersHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("DELETE "+RouteSecurityDevice, ChainMiddleware(s.TerminateDeviceHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
}
