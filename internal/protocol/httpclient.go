package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/kubev2v/guest-extension-agent/internal/models"
	svcerrors "github.com/kubev2v/guest-extension-agent/pkg/errors"
)

// HTTPClient is the default Client implementation: a thin JSON/REST
// wrapper around the control-plane endpoints, carrying a bearer token the
// same way the teacher's pkg/console.Client attached a JWT to every
// request via a request-editor function. The wire schema below is this
// orchestrator's own minimal stand-in for the real Azure guest-agent wire
// protocol, which §1/§6 place out of scope.
//
// Package-mirror downloads go through a retryablehttp client with its own
// retries disabled (RetryMax: 0): the Downloader (§4.2) owns the
// round/shuffle retry policy, but still benefits from retryablehttp's
// connection reuse and request logging.
type HTTPClient struct {
	baseURL                  string
	token                    string
	hc                       *http.Client
	dlClient                 *retryablehttp.Client
	supportsOverprovisioning bool
}

func NewHTTPClient(baseURL, token string, hc *http.Client, supportsOverprovisioning bool) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	dl := retryablehttp.NewClient()
	dl.RetryMax = 0
	dl.Logger = nil
	return &HTTPClient{baseURL: baseURL, token: token, hc: hc, dlClient: dl, supportsOverprovisioning: supportsOverprovisioning}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return svcerrors.NewProtocolError(method+" "+path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return svcerrors.NewProtocolError(method+" "+path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return svcerrors.NewProtocolError(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return svcerrors.NewProtocolNotFoundError(path)
	}
	if resp.StatusCode >= 300 {
		return svcerrors.NewProtocolError(method+" "+path, fmt.Errorf("unexpected status %s", resp.Status))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// goalStateWire is the wire shape of the /goalstate document; the client
// translates it into models.HandlerGoalState so the rest of the
// orchestrator never sees wire-specific field names.
type goalStateWire struct {
	Etag     string              `json:"etag"`
	Handlers []handlerWireEntry  `json:"handlers"`
}

type handlerWireEntry struct {
	Name             string          `json:"name"`
	RequestedVersion string          `json:"version"`
	Target           string          `json:"state"`
	SortKey          int             `json:"dependencyLevel"`
	Extensions       []extensionWire `json:"runtimeSettings"`
	Packages         []packageWire   `json:"packages"`
}

type extensionWire struct {
	Name           string `json:"name"`
	SequenceNumber *int   `json:"sequenceNumber"`
	PublicSettings string `json:"publicSettings"`
}

type packageWire struct {
	Version string   `json:"version"`
	URIs    []string `json:"uris"`
}

func (c *HTTPClient) GetExtHandlers(ctx context.Context) ([]models.HandlerGoalState, string, error) {
	var doc goalStateWire
	if err := c.do(ctx, http.MethodGet, "/goalstate", nil, &doc); err != nil {
		return nil, "", err
	}

	handlers := make([]models.HandlerGoalState, 0, len(doc.Handlers))
	for _, h := range doc.Handlers {
		target, err := models.ParseTargetState(h.Target)
		if err != nil {
			target = models.TargetDisabled
		}
		exts := make([]models.ExtensionGoalState, 0, len(h.Extensions))
		for _, e := range h.Extensions {
			exts = append(exts, models.ExtensionGoalState{Name: e.Name, SequenceNumber: e.SequenceNumber, PublicSettings: e.PublicSettings})
		}
		pkgs := make([]models.Package, 0, len(h.Packages))
		for _, p := range h.Packages {
			pkgs = append(pkgs, models.Package{Version: p.Version, URIs: p.URIs})
		}
		handlers = append(handlers, models.HandlerGoalState{
			Name:             h.Name,
			RequestedVersion: h.RequestedVersion,
			Target:           target,
			SortKey:          h.SortKey,
			Extensions:       exts,
			Packages:         pkgs,
		})
	}
	return handlers, doc.Etag, nil
}

func (c *HTTPClient) SupportsOverprovisioning(ctx context.Context) bool {
	return c.supportsOverprovisioning
}

func (c *HTTPClient) GetArtifactsProfile(ctx context.Context) (*ArtifactsProfile, error) {
	var profile ArtifactsProfile
	err := c.do(ctx, http.MethodGet, "/artifactsProfile", nil, &profile)
	if err != nil {
		if _, ok := err.(*svcerrors.ProtocolNotFoundError); ok {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (c *HTTPClient) GetExtHandlerPkgs(ctx context.Context, handlerName string) (HandlerPackages, error) {
	var wire struct {
		Versions []packageWire `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/extensionHandlers/"+handlerName+"/packages", nil, &wire); err != nil {
		return HandlerPackages{}, err
	}
	pkgs := make([]models.Package, 0, len(wire.Versions))
	for _, p := range wire.Versions {
		pkgs = append(pkgs, models.Package{Version: p.Version, URIs: p.URIs})
	}
	return HandlerPackages{Versions: pkgs}, nil
}

func (c *HTTPClient) DownloadExtHandlerPkg(ctx context.Context, uri, destFile string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return svcerrors.NewProtocolError("download", err)
	}
	resp, err := c.dlClient.Do(req)
	if err != nil {
		return svcerrors.NewProtocolError("download", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return svcerrors.NewProtocolError("download", fmt.Errorf("unexpected status %s", resp.Status))
	}

	f, err := os.Create(destFile)
	if err != nil {
		return svcerrors.NewProtocolError("download", err)
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func (c *HTTPClient) ReportVMStatus(ctx context.Context, status models.VMStatus) error {
	return c.do(ctx, http.MethodPut, "/vmStatus", status, nil)
}

func (c *HTTPClient) ReportExtStatus(ctx context.Context, handlerName, extName string, status models.ExtensionStatus) error {
	return c.do(ctx, http.MethodPut, "/extensionHandlers/"+handlerName+"/"+extName+"/status", status, nil)
}
