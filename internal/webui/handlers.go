package webui

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

const (
	healthRoutePathConstant   = "/api/health"
	runsRoutePathConstant     = "/api/runs"
	runRoutePathConstant      = "/api/runs/:run"
	reportRoutePathConstant   = "/api/runs/:run/report"
	findingsRoutePathConstant = "/api/runs/:run/findings"

	runParameterNameConstant = "run"

	healthStatusConstant = "ok"
	serviceNameConstant  = "genopipe"
)

func (server *Server) registerRoutes() {
	server.engine.GET(healthRoutePathConstant, server.handleHealth)
	server.engine.GET(runsRoutePathConstant, server.handleRunList)
	server.engine.GET(runRoutePathConstant, server.handleRunDetail)
	server.engine.GET(reportRoutePathConstant, server.handleRunReport)
	server.engine.GET(findingsRoutePathConstant, server.handleRunFindings)
}

func (server *Server) handleHealth(requestContext *gin.Context) {
	summaries, listError := server.inventory.List()
	if listError != nil {
		server.renderError(requestContext, listError)
		return
	}
	requestContext.JSON(http.StatusOK, HealthView{
		Status:        healthStatusConstant,
		Service:       serviceNameConstant,
		Version:       server.dependencies.Version,
		RunsDirectory: server.dependencies.RunsDirectory,
		RunCount:      len(summaries),
	})
}

func (server *Server) handleRunList(requestContext *gin.Context) {
	summaries, listError := server.inventory.List()
	if listError != nil {
		server.renderError(requestContext, listError)
		return
	}
	requestContext.JSON(http.StatusOK, RunListView{Count: len(summaries), Runs: summaries})
}

func (server *Server) handleRunDetail(requestContext *gin.Context) {
	runDetail, detailError := server.inventory.Detail(requestContext.Param(runParameterNameConstant))
	if detailError != nil {
		server.renderError(requestContext, detailError)
		return
	}
	requestContext.JSON(http.StatusOK, runDetail)
}

func (server *Server) handleRunReport(requestContext *gin.Context) {
	document, documentError := server.inventory.LocateReport(requestContext.Param(runParameterNameConstant))
	if documentError != nil {
		server.renderError(requestContext, documentError)
		return
	}
	content, readError := os.ReadFile(document.Path)
	if readError != nil {
		server.renderError(requestContext, readError)
		return
	}
	requestContext.Data(http.StatusOK, document.ContentType, content)
}

func (server *Server) handleRunFindings(requestContext *gin.Context) {
	findings, findingsError := server.inventory.Findings(requestContext.Param(runParameterNameConstant))
	if findingsError != nil {
		server.renderError(requestContext, findingsError)
		return
	}
	requestContext.JSON(http.StatusOK, findings)
}

func (server *Server) renderError(requestContext *gin.Context, failure error) {
	statusCode := http.StatusInternalServerError
	if errors.Is(failure, ErrRunNotFound) || errors.Is(failure, ErrDocumentNotFound) {
		statusCode = http.StatusNotFound
	}
	requestContext.JSON(statusCode, ErrorView{Error: failure.Error()})
}
