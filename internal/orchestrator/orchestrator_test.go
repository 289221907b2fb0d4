package orchestrator_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/guest-extension-agent/internal/cgroups"
	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/orchestrator"
	"github.com/kubev2v/guest-extension-agent/internal/protocol"
	"github.com/kubev2v/guest-extension-agent/internal/telemetry"
)

func TestOrchestrator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Orchestrator Suite")
}

// fakeClient is a minimal protocol.Client double: one handler goal state,
// a fake package catalog, and in-memory download/report recording.
type fakeClient struct {
	handlers []models.HandlerGoalState
	reports  []models.VMStatus
}

func (f *fakeClient) GetExtHandlers(ctx context.Context) ([]models.HandlerGoalState, string, error) {
	return f.handlers, "etag-1", nil
}

func (f *fakeClient) SupportsOverprovisioning(ctx context.Context) bool { return false }

func (f *fakeClient) GetArtifactsProfile(ctx context.Context) (*protocol.ArtifactsProfile, error) {
	return nil, nil
}

func (f *fakeClient) GetExtHandlerPkgs(ctx context.Context, name string) (protocol.HandlerPackages, error) {
	return protocol.HandlerPackages{}, nil
}

func (f *fakeClient) DownloadExtHandlerPkg(ctx context.Context, uri, destFile string) error {
	return os.WriteFile(destFile, []byte("not-a-real-zip"), 0o600)
}

func (f *fakeClient) ReportVMStatus(ctx context.Context, status models.VMStatus) error {
	f.reports = append(f.reports, status)
	return nil
}

func (f *fakeClient) ReportExtStatus(ctx context.Context, handlerName, extName string, status models.ExtensionStatus) error {
	return nil
}

type noopSink struct{}

func (noopSink) AddEvent(ev telemetry.Event) {}

// fakeExecutor records every invocation and always succeeds without
// actually running a command, so tests don't depend on a shell.
type fakeExecutor struct {
	ran []string
}

func (f *fakeExecutor) Start(ctx context.Context, req cgroups.StartRequest) (string, error) {
	f.ran = append(f.ran, req.Name)
	return "", nil
}
func (f *fakeExecutor) CreateCgroup(fullName string) error { return nil }
func (f *fakeExecutor) RemoveCgroup(fullName string) error { return nil }

var _ = Describe("Orchestrator", func() {
	var (
		libRoot    string
		extLogRoot string
		client     *fakeClient
		executor   *fakeExecutor
	)

	BeforeEach(func() {
		libRoot = GinkgoT().TempDir()
		extLogRoot = GinkgoT().TempDir()
		executor = &fakeExecutor{}
	})

	It("reports an aggregate VM status for a handler with no on-disk state", func() {
		client = &fakeClient{handlers: []models.HandlerGoalState{
			{Name: "Foo", Target: models.TargetDisabled, SortKey: -1},
		}}

		o := orchestrator.New(orchestrator.Config{LibRoot: libRoot, ExtLogRoot: extLogRoot, ExtensionsEnabled: true}, client, executor, noopSink{}, nil)
		Expect(o.Run(context.Background())).To(Succeed())

		Expect(client.reports).To(HaveLen(1))
	})

	It("writes a status snapshot on every pass", func() {
		client = &fakeClient{handlers: nil}
		snapshotPath := filepath.Join(GinkgoT().TempDir(), "waagent_status.json")

		o := orchestrator.New(orchestrator.Config{
			LibRoot: libRoot, ExtLogRoot: extLogRoot, ExtensionsEnabled: true,
			AgentName: "guest-extension-agent", RunningVersion: "1.0.0",
			StatusSnapshotPath: snapshotPath,
		}, client, executor, noopSink{}, nil)
		Expect(o.Run(context.Background())).To(Succeed())

		data, err := os.ReadFile(snapshotPath)
		Expect(err).NotTo(HaveOccurred())
		var snap models.StatusSnapshot
		Expect(json.Unmarshal(data, &snap)).To(Succeed())
		Expect(snap.AgentName).To(Equal("guest-extension-agent"))
	})

	It("skips processing entirely when extensions are disabled", func() {
		client = &fakeClient{handlers: []models.HandlerGoalState{
			{Name: "Foo", Target: models.TargetEnabled, SortKey: -1, RequestedVersion: "1.0", Packages: []models.Package{{Version: "1.0", URIs: []string{"http://example/Foo-1.0.zip"}}}},
		}}

		o := orchestrator.New(orchestrator.Config{LibRoot: libRoot, ExtLogRoot: extLogRoot, ExtensionsEnabled: false}, client, executor, noopSink{}, nil)
		Expect(o.Run(context.Background())).To(Succeed())

		_, err := os.Stat(filepath.Join(libRoot, "Foo-1.0"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("records no-matching-version handlers with a NotReady status", func() {
		client = &fakeClient{handlers: []models.HandlerGoalState{
			{Name: "Foo", Target: models.TargetEnabled, SortKey: -1, RequestedVersion: "9.9", Packages: []models.Package{{Version: "1.0", URIs: []string{"http://example/Foo-1.0.zip"}}}},
		}}

		o := orchestrator.New(orchestrator.Config{LibRoot: libRoot, ExtLogRoot: extLogRoot, ExtensionsEnabled: true}, client, executor, noopSink{}, nil)
		Expect(o.Run(context.Background())).To(Succeed())

		// The end-of-pass sweep removes the NotInstalled Foo-9.9 directory,
		// so the recorded status is checked in the VM report of this pass.
		Expect(client.reports).To(HaveLen(1))
		Expect(client.reports[0].Handlers).To(HaveLen(1))
		Expect(client.reports[0].Handlers[0].Status).To(Equal(models.StatusNotReady))
	})
})

var _ = Describe("PassRecorder wiring", func() {
	It("invokes the recorder once per pass", func() {
		libRoot := GinkgoT().TempDir()
		extLogRoot := GinkgoT().TempDir()
		client := &fakeClient{}
		executor := &fakeExecutor{}
		rec := &recordingRecorder{}

		o := orchestrator.New(orchestrator.Config{LibRoot: libRoot, ExtLogRoot: extLogRoot, ExtensionsEnabled: true}, client, executor, noopSink{}, rec)
		Expect(o.Run(context.Background())).To(Succeed())
		Expect(o.Run(context.Background())).To(Succeed())

		Expect(rec.records).To(HaveLen(2))
	})
})

type recordingRecorder struct {
	records []models.PassRecord
}

func (r *recordingRecorder) Record(ctx context.Context, rec models.PassRecord) error {
	r.records = append(r.records, rec)
	return nil
}
