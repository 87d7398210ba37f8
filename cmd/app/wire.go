//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/horizon/internal/bootstrap"
	"github.com/yanqian/horizon/internal/domain/auditlog"
	"github.com/yanqian/horizon/internal/domain/session"
	"github.com/yanqian/horizon/internal/domain/sunreport"
	"github.com/yanqian/horizon/internal/infra/config"
	httpiface "github.com/yanqian/horizon/internal/interface/http"
	"github.com/yanqian/horizon/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideReportConfig,
		provideSessionConfig,
		provideAuditConfig,
		provideGenerator,
		provideDiagnosticsSink,
		provideSessionStore,
		provideAuditRepository,
		provideAuditRecorder,
		sunreport.NewService,
		auditlog.NewService,
		session.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
