package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/younsl/vpcepilot/internal/app"
	"github.com/younsl/vpcepilot/internal/config"
	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/internal/version"
)

// Runner is the part of the orchestrator the handler needs
type Runner interface {
	Run(ctx context.Context, req models.Request) models.Response
}

// handler serves one invocation. Clients stay cached per region across warm invocations.
type handler struct {
	runner Runner
}

func (h *handler) Handle(ctx context.Context, req models.Request) (models.Response, error) {
	logrus.WithFields(logrus.Fields{
		"instance_id": req.InstanceID,
		"region":      req.Region,
	}).Info("Invocation received")

	resp := h.runner.Run(ctx, req)
	return resp, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("VPCEPILOT_CONFIG_FILE"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	app.ConfigureLogging(cfg.LogLevel, true)
	logrus.Infof("Starting %s", version.Get())

	orch, err := app.New(cfg, time.Now)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build orchestrator")
	}

	h := &handler{runner: orch}
	lambda.Start(h.Handle)
}
