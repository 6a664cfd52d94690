package server

import "github.com/gin-gonic/gin"

// SetupBidRoutes wires the working-file, table and analysis endpoints.
func SetupBidRoutes(rg *gin.RouterGroup, h *Handler) {
	rg.POST("/bid/file", h.UploadBidFile)
	rg.DELETE("/bid/file", h.ClearBidFile)

	rg.GET("/bid/sheets", h.GetSheets)
	rg.PUT("/bid/sheets/selected", h.SelectSheet)

	rg.GET("/bid/products", h.GetProducts)
	rg.PUT("/bid/products/:index", h.EditProduct)
	rg.DELETE("/bid/products/:index", h.DeleteProduct)

	rg.POST("/bid/analyze", h.Analyze)
	rg.GET("/bid/analysis.csv", h.DownloadCSV)
	rg.GET("/bid/analysis.xlsx", h.DownloadXLSX)
}

// SetupReferenceRoutes wires the provider price-list endpoints.
func SetupReferenceRoutes(rg *gin.RouterGroup, h *Handler) {
	rg.GET("/reference/files", h.ListReferenceFiles)
	rg.POST("/reference/files", h.UploadReferenceFiles)
	rg.DELETE("/reference/files/:id", h.DeleteReferenceFile)
}

// SetupLanguageRoutes wires the UI language endpoints.
func SetupLanguageRoutes(rg *gin.RouterGroup, h *Handler) {
	rg.GET("/language", h.GetLanguage)
	rg.PUT("/language", h.SetLanguage)
}
