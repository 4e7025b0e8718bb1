package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"wayfindr.app/relay/internal/service"
)

var _ = Describe("HealthService", func() {
	ok := func(context.Context) error { return nil }

	It("reports ok when every component answers", func() {
		svc := service.NewHealthService(0,
			service.HealthCheck{Name: "postgres", Check: ok},
			service.HealthCheck{Name: "redis", Check: ok},
		)
		report := svc.Check(context.Background())
		Expect(report.Status).To(Equal(service.HealthOK))
		Expect(report.Components).To(Equal(map[string]string{"postgres": "ok", "redis": "ok"}))
	})

	It("degrades when one component fails", func() {
		svc := service.NewHealthService(0,
			service.HealthCheck{Name: "postgres", Check: ok},
			service.HealthCheck{Name: "qdrant", Check: func(context.Context) error { return errors.New("connection refused") }},
		)
		report := svc.Check(context.Background())
		Expect(report.Status).To(Equal(service.HealthDegraded))
		Expect(report.Components["qdrant"]).To(Equal("error: connection refused"))
		Expect(report.Components["postgres"]).To(Equal("ok"))
	})
})
