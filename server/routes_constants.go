package server

const (
	RouteAuthLogin        = "/auth/login"
	RouteAuthRefreshToken = "/auth/refresh-token"
	RouteAuthLogout       = "/auth/logout"
	RouteAuthMe           = "/auth/me"

	RouteSecurityDevices = "/security/devices"
	RouteSecurityDevice  = "/security/devices/{deviceId}"

	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

const (
	refreshCookieName = "refreshToken"
	contentTypeJSON   = "application/json; charset=utf-8"
	headerRequestID   = "X-Request-ID"
	maxBodyBytes      = 4 << 10
)
