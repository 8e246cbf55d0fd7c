package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/salloumtech/fatoora/internal/invoice/domain"
)

func (s *Server) listInvoices(c *gin.Context) {
	req := invoicedomain.ListRequest{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := invoicedomain.InvoiceStatus(raw)
		if !validStatus(status) {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.Status = &status
	}

	invoices, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (s *Server) invoiceStats(c *gin.Context) {
	counts, err := s.invoiceSvc.StatusCounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *Server) getInvoice(c *gin.Context) {
	inv, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) getInvoiceDocument(c *gin.Context) {
	artifact, err := s.invoiceSvc.Artifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, artifact)
}

// importInvoices takes the header and line feeds as multipart files named
// "headers" and "lines".
func (s *Server) importInvoices(c *gin.Context) {
	headerFile, err := c.FormFile("headers")
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	lineFile, err := c.FormFile("lines")
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	headers, err := headerFile.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer headers.Close()
	lines, err := lineFile.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer lines.Close()

	res, err := s.ingestSvc.Ingest(c.Request.Context(), headers, lines)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// processInvoices runs one submission pass on demand.
func (s *Server) processInvoices(c *gin.Context) {
	limit := intQuery(c, "limit", 0)

	res, err := s.sub.ProcessBatch(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func validStatus(s invoicedomain.InvoiceStatus) bool {
	for _, known := range invoicedomain.Statuses {
		if s == known {
			return true
		}
	}
	return false
}
