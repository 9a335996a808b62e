package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/valida", s.health)
	s.router.POST("/disposicionimss/certificacion", s.certify)

	s.router.GET("/api/v1/locks/:resource", s.isLocked)
	s.router.GET("/api/v1/locks/:resource/info", s.lockInfo)

	if s.gatherer != nil {
		s.router.GET("/metrics", s.metricsHandler())
	}
}
