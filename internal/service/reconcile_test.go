package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"phalerts.app/server/internal/model"
	"phalerts.app/server/internal/service"
)

var _ = Describe("Reconciler", func() {
	var (
		gw         *fakeGateway
		renderer   service.Renderer
		reconciler service.Reconciler
		ctx        context.Context
	)

	notification := func() *model.Notification {
		return &model.Notification{
			Version:     "4",
			GroupKey:    `{}:{alertname="DiskFull"}`,
			Status:      model.StatusFiring,
			GroupLabels: map[string]string{"alertname": "DiskFull"},
			Alerts: []model.Alert{
				{
					Status: model.StatusFiring,
					Labels: map[string]string{"alertname": "DiskFull", "server": "a1"},
				},
			},
		}
	}

	BeforeEach(func() {
		gw = &fakeGateway{}
		var err error
		renderer, err = service.NewRenderer(service.DefaultTitleTemplate)
		Expect(err).NotTo(HaveOccurred())

		reconciler = service.NewReconciler(
			gw,
			service.NewProjectResolver(gw, service.NewProjectCache(0)),
			renderer,
			service.NewIssueFinder(gw, 100),
		)
		ctx = context.Background()
	})

	It("creates a task when no open task matches", func() {
		var createdTitle, createdDescription string
		gw.createFn = func(_ context.Context, title, description string, phids []string) (*model.Task, error) {
			createdTitle = title
			createdDescription = description
			return &model.Task{ID: 42, PHID: "PHID-TASK-42", Title: title, Description: description, Status: model.TaskStatusOpen}, nil
		}

		result, err := reconciler.Reconcile(ctx, notification(), nil, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(service.OutcomeCreated))
		Expect(result.TaskID).To(Equal(42))
		Expect(createdTitle).To(Equal("DiskFull"))
		Expect(createdDescription).To(ContainSubstring("Fingerprint: "))
		Expect(gw.updateCalls).To(Equal(0))
	})

	It("does nothing on re-delivery of the same notification", func() {
		rendered, err := renderer.Render(notification(), "")
		Expect(err).NotTo(HaveOccurred())

		gw.searchFn = func(_ context.Context, _ string, _ []string, _ string) (*model.TaskPage, error) {
			return &model.TaskPage{Tasks: []model.Task{{
				ID:          42,
				PHID:        "PHID-TASK-42",
				Title:       rendered.Title,
				Description: rendered.Description,
				Status:      model.TaskStatusOpen,
			}}}, nil
		}

		result, err := reconciler.Reconcile(ctx, notification(), nil, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(service.OutcomeNoop))
		Expect(result.TaskID).To(Equal(42))
		Expect(gw.createCalls).To(Equal(0))
		Expect(gw.updateCalls).To(Equal(0))
	})

	It("updates only the description when the group content changed", func() {
		changed := notification()
		changed.Alerts[0].Labels["server"] = "b2"
		stale, err := renderer.Render(changed, "")
		Expect(err).NotTo(HaveOccurred())

		gw.searchFn = func(_ context.Context, _ string, _ []string, _ string) (*model.TaskPage, error) {
			return &model.TaskPage{Tasks: []model.Task{{
				ID:          42,
				PHID:        "PHID-TASK-42",
				Title:       stale.Title,
				Description: stale.Description,
				Status:      model.TaskStatusOpen,
			}}}, nil
		}

		var updatedPHID string
		gw.updateFn = func(_ context.Context, phid, description string) error {
			updatedPHID = phid
			Expect(description).To(ContainSubstring("* **server**: a1"))
			return nil
		}

		result, err := reconciler.Reconcile(ctx, notification(), nil, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(service.OutcomeUpdated))
		Expect(updatedPHID).To(Equal("PHID-TASK-42"))
		Expect(gw.createCalls).To(Equal(0))
	})

	It("rewrites a manually edited description that lost its fingerprint", func() {
		gw.searchFn = func(_ context.Context, _ string, _ []string, _ string) (*model.TaskPage, error) {
			return &model.TaskPage{Tasks: []model.Task{{
				ID:          42,
				PHID:        "PHID-TASK-42",
				Title:       "DiskFull",
				Description: "someone edited this by hand",
				Status:      model.TaskStatusOpen,
			}}}, nil
		}

		result, err := reconciler.Reconcile(ctx, notification(), nil, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(service.OutcomeUpdated))
		Expect(gw.updateCalls).To(Equal(1))
	})

	It("creates with the resolved project identifiers", func() {
		gw.projectsFn = func(_ context.Context, name string) ([]model.Project, error) {
			return []model.Project{{PHID: "PHID-PROJ-infra", Name: "infra"}}, nil
		}
		var createdProjects []string
		gw.createFn = func(_ context.Context, title, description string, phids []string) (*model.Task, error) {
			createdProjects = phids
			return &model.Task{ID: 1, PHID: "PHID-TASK-1", Status: model.TaskStatusOpen}, nil
		}

		refs := []model.ProjectRef{{Name: "infra"}, {PHID: "PHID-PROJ-db"}}
		_, err := reconciler.Reconcile(ctx, notification(), refs, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(createdProjects).To(Equal([]string{"PHID-PROJ-infra", "PHID-PROJ-db"}))
	})

	It("aborts before any write when a project name is ambiguous", func() {
		gw.projectsFn = func(_ context.Context, name string) ([]model.Project, error) {
			return []model.Project{
				{PHID: "PHID-PROJ-1", Name: "infra"},
				{PHID: "PHID-PROJ-2", Name: "infra"},
			}, nil
		}

		_, err := reconciler.Reconcile(ctx, notification(), []model.ProjectRef{{Name: "infra"}}, "")
		Expect(errors.Is(err, service.ErrProjectNotFound)).To(BeTrue())
		Expect(gw.searchCalls).To(Equal(0))
		Expect(gw.createCalls).To(Equal(0))
		Expect(gw.updateCalls).To(Equal(0))
	})

	It("aborts before any remote call on a template failure", func() {
		gw.projectsFn = func(_ context.Context, name string) ([]model.Project, error) {
			return []model.Project{{PHID: "PHID-PROJ-infra", Name: "infra"}}, nil
		}

		refs := []model.ProjectRef{{Name: "infra"}}
		_, err := reconciler.Reconcile(ctx, notification(), refs, "{{.Nope}}")
		var renderErr *service.RenderError
		Expect(errors.As(err, &renderErr)).To(BeTrue())
		Expect(gw.projectCalls).To(Equal(0))
		Expect(gw.searchCalls).To(Equal(0))
		Expect(gw.createCalls).To(Equal(0))
	})

	It("surfaces the pagination limit instead of creating a duplicate", func() {
		gw.searchFn = func(_ context.Context, _ string, _ []string, _ string) (*model.TaskPage, error) {
			tasks := make([]model.Task, 101)
			for i := range tasks {
				tasks[i] = model.Task{ID: i + 1, PHID: "PHID-TASK-x", Title: "DiskFull", Status: model.TaskStatusOpen}
			}
			return &model.TaskPage{Tasks: tasks}, nil
		}

		_, err := reconciler.Reconcile(ctx, notification(), nil, "")
		Expect(errors.Is(err, service.ErrPaginationLimit)).To(BeTrue())
		Expect(gw.createCalls).To(Equal(0))
	})

	It("propagates cancellation from the gateway", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		gw.searchFn = func(callCtx context.Context, _ string, _ []string, _ string) (*model.TaskPage, error) {
			return nil, callCtx.Err()
		}

		_, err := reconciler.Reconcile(cancelled, notification(), nil, "")
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(gw.createCalls).To(Equal(0))
	})

	It("still updates the description for a resolved notification", func() {
		resolved := notification()
		resolved.Status = model.StatusResolved
		resolved.Alerts[0].Status = model.StatusResolved

		firing, err := renderer.Render(notification(), "")
		Expect(err).NotTo(HaveOccurred())

		gw.searchFn = func(_ context.Context, _ string, _ []string, _ string) (*model.TaskPage, error) {
			return &model.TaskPage{Tasks: []model.Task{{
				ID:          42,
				PHID:        "PHID-TASK-42",
				Title:       firing.Title,
				Description: firing.Description,
				Status:      model.TaskStatusOpen,
			}}}, nil
		}

		result, err := reconciler.Reconcile(ctx, resolved, nil, "")
		Expect(err).NotTo(HaveOccurred())
		// The task stays open; only the description records the change.
		Expect(result.Outcome).To(Equal(service.OutcomeUpdated))
		Expect(gw.updateCalls).To(Equal(1))
	})
})
