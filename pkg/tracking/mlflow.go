package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

const (
	apiPrefix          = "/api/2.0/mlflow"
	artifactsAPIPrefix = "/api/2.0/mlflow-artifacts/artifacts"

	errorCodeNotFound = "RESOURCE_DOES_NOT_EXIST"
)

var _ Tracker = &MLflowClient{}

// ObjectPutter writes artifacts of runs whose artifact root is an s3:// location.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader) error
}

// MLflowClient speaks the MLflow REST API. Requests are neither retried nor
// given a deadline beyond the one on ctx.
type MLflowClient struct {
	Client *http.Client
	Addr   string
	// Artifacts is used for s3:// artifact roots. Runs logged to a server that
	// proxies artifacts do not need it.
	Artifacts ObjectPutter
}

func NewMLflowClient(trackingURI string) *MLflowClient {
	return &MLflowClient{
		Client: http.DefaultClient,
		Addr:   strings.TrimSuffix(trackingURI, "/"),
	}
}

// APIError is the error body the tracking server answers with.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

func (e APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type runInfo struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
	ArtifactURI  string `json:"artifact_uri"`
	Status       string `json:"status"`
}

func (c *MLflowClient) ExperimentID(ctx context.Context, name string) (string, error) {
	var got struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	query := "?" + url.Values{"experiment_name": {name}}.Encode()
	_, err := c.request(ctx, http.MethodGet, apiPrefix+"/experiments/get-by-name"+query, nil, &got)
	if err == nil {
		return got.Experiment.ExperimentID, nil
	}
	if !isNotFound(err) {
		return "", errors.NewTrackingFailedError("get experiment "+name, err)
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if _, err := c.request(ctx, http.MethodPost, apiPrefix+"/experiments/create", map[string]string{"name": name}, &created); err != nil {
		return "", errors.NewTrackingFailedError("create experiment "+name, err)
	}
	logr.FromContextOrDiscard(ctx).Info("created experiment", "experiment", name, "id", created.ExperimentID)
	return created.ExperimentID, nil
}

func (c *MLflowClient) StartRun(ctx context.Context, experiment string, runName string, tags map[string]string) (Run, error) {
	experimentID, err := c.ExperimentID(ctx, experiment)
	if err != nil {
		return nil, err
	}
	runTags := map[string]string{}
	for k, v := range tags {
		runTags[k] = v
	}
	// older servers only show the run name through the tag
	if _, ok := runTags[TagRunName]; !ok && runName != "" {
		runTags[TagRunName] = runName
	}
	body := map[string]any{
		"experiment_id": experimentID,
		"run_name":      runName,
		"start_time":    time.Now().UnixMilli(),
		"tags":          sortedKeyValues(runTags),
	}
	var created struct {
		Run struct {
			Info runInfo `json:"info"`
		} `json:"run"`
	}
	if _, err := c.request(ctx, http.MethodPost, apiPrefix+"/runs/create", body, &created); err != nil {
		return nil, errors.NewTrackingFailedError("create run", err)
	}
	info := created.Run.Info
	if info.ExperimentID == "" {
		info.ExperimentID = experimentID
	}
	logr.FromContextOrDiscard(ctx).Info("started run", "experiment", experiment, "run", info.RunID)
	return &mlflowRun{client: c, info: info}, nil
}

type mlflowRun struct {
	client *MLflowClient
	info   runInfo
}

func (r *mlflowRun) ID() string { return r.info.RunID }

func (r *mlflowRun) LogParams(ctx context.Context, params map[string]string) error {
	body := map[string]any{"run_id": r.info.RunID, "params": sortedKeyValues(params)}
	if _, err := r.client.request(ctx, http.MethodPost, apiPrefix+"/runs/log-batch", body, nil); err != nil {
		return errors.NewTrackingFailedError("log params", err)
	}
	return nil
}

func (r *mlflowRun) LogMetric(ctx context.Context, key string, value float64) error {
	return r.LogMetrics(ctx, map[string]float64{key: value})
}

func (r *mlflowRun) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	now := time.Now().UnixMilli()
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := make([]metric, 0, len(keys))
	for _, k := range keys {
		v := metrics[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewTrackingFailedError("log metrics", fmt.Errorf("metric %s is not finite", k))
		}
		list = append(list, metric{Key: k, Value: v, Timestamp: now})
	}
	body := map[string]any{"run_id": r.info.RunID, "metrics": list}
	if _, err := r.client.request(ctx, http.MethodPost, apiPrefix+"/runs/log-batch", body, nil); err != nil {
		return errors.NewTrackingFailedError("log metrics", err)
	}
	return nil
}

func (r *mlflowRun) SetTag(ctx context.Context, key, value string) error {
	body := map[string]any{"run_id": r.info.RunID, "key": key, "value": value}
	if _, err := r.client.request(ctx, http.MethodPost, apiPrefix+"/runs/set-tag", body, nil); err != nil {
		return errors.NewTrackingFailedError("set tag "+key, err)
	}
	return nil
}

func (r *mlflowRun) LogInput(ctx context.Context, dataset Dataset, datasetContext string) error {
	input := map[string]any{"dataset": dataset}
	if datasetContext != "" {
		input["tags"] = []keyValue{{Key: DatasetContextTag, Value: datasetContext}}
	}
	body := map[string]any{"run_id": r.info.RunID, "datasets": []any{input}}
	if _, err := r.client.request(ctx, http.MethodPost, apiPrefix+"/runs/log-inputs", body, nil); err != nil {
		return errors.NewTrackingFailedError("log input "+dataset.Name, err)
	}
	return nil
}

func (r *mlflowRun) LogArtifact(ctx context.Context, localPath string, artifactPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.NewTrackingFailedError("log artifact", err)
	}
	defer f.Close()
	return r.upload(ctx, path.Join(artifactPath, filepath.Base(localPath)), f)
}

func (r *mlflowRun) LogDict(ctx context.Context, v any, artifactFile string) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewTrackingFailedError("log dict", err)
	}
	return r.upload(ctx, artifactFile, bytes.NewReader(content))
}

func (r *mlflowRun) upload(ctx context.Context, artifactFile string, body io.Reader) error {
	root, err := parseArtifactRoot(r.info.ArtifactURI)
	if err != nil {
		return errors.NewTrackingFailedError("log artifact "+artifactFile, err)
	}
	switch root.Scheme {
	case "s3":
		if r.client.Artifacts == nil {
			return errors.NewTrackingFailedError("log artifact "+artifactFile,
				fmt.Errorf("artifact root %q needs an object store client", r.info.ArtifactURI))
		}
		key := path.Join(root.Path, artifactFile)
		if err := r.client.Artifacts.PutObject(ctx, root.Bucket, key, body); err != nil {
			return errors.NewTrackingFailedError("log artifact "+artifactFile, err)
		}
	default:
		header := map[string]string{"Content-Type": "application/octet-stream"}
		target := artifactsAPIPrefix + "/" + path.Join(root.Path, artifactFile)
		if _, err := r.client.requestWithHeader(ctx, http.MethodPut, target, header, body, nil); err != nil {
			return errors.NewTrackingFailedError("log artifact "+artifactFile, err)
		}
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("uploaded artifact", "run", r.info.RunID, "artifact", artifactFile)
	return nil
}

func (r *mlflowRun) End(ctx context.Context, status string) error {
	body := map[string]any{
		"run_id":   r.info.RunID,
		"status":   status,
		"end_time": time.Now().UnixMilli(),
	}
	if _, err := r.client.request(ctx, http.MethodPost, apiPrefix+"/runs/update", body, nil); err != nil {
		return errors.NewTrackingFailedError("end run", err)
	}
	logr.FromContextOrDiscard(ctx).Info("ended run", "run", r.info.RunID, "status", status)
	return nil
}

type artifactRoot struct {
	Scheme string
	Bucket string
	Path   string
}

// parseArtifactRoot accepts mlflow-artifacts:/<exp>/<run>/artifacts (optionally
// with a host), served by the tracking server's artifacts proxy, and
// s3://<bucket>/<prefix>, written to the object store directly.
func parseArtifactRoot(artifactURI string) (artifactRoot, error) {
	u, err := url.Parse(artifactURI)
	if err != nil {
		return artifactRoot{}, err
	}
	switch u.Scheme {
	case "mlflow-artifacts":
		return artifactRoot{Scheme: u.Scheme, Path: strings.Trim(u.Path, "/")}, nil
	case "s3":
		if u.Host == "" {
			return artifactRoot{}, fmt.Errorf("artifact root %q has no bucket", artifactURI)
		}
		return artifactRoot{Scheme: u.Scheme, Bucket: u.Host, Path: strings.Trim(u.Path, "/")}, nil
	default:
		return artifactRoot{}, fmt.Errorf("artifact root %q is neither proxied by the tracking server nor on s3; start the server with --serve-artifacts", artifactURI)
	}
}

func (c *MLflowClient) request(ctx context.Context, method, url string, body any, into any) (*http.Response, error) {
	header := map[string]string{}
	if body != nil {
		header["Content-Type"] = "application/json"
	}
	return c.requestWithHeader(ctx, method, url, header, body, into)
}

func (c *MLflowClient) requestWithHeader(ctx context.Context, method, url string, header map[string]string, body any, into any) (*http.Response, error) {
	url = c.Addr + url
	logr.FromContextOrDiscard(ctx).V(2).Info("tracking request", "method", method, "url", url)

	var reqbody io.Reader
	switch val := body.(type) {
	case io.Reader:
		reqbody = val
	case nil:
		reqbody = nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		reqbody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqbody)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		apierr := APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apierr); err != nil || (apierr.Message == "" && apierr.ErrorCode == "") {
			apierr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apierr
	}
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func isNotFound(err error) bool {
	apierr, ok := err.(APIError)
	return ok && (apierr.ErrorCode == errorCodeNotFound || apierr.StatusCode == http.StatusNotFound)
}

func sortedKeyValues(m map[string]string) []keyValue {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := make([]keyValue, 0, len(keys))
	for _, k := range keys {
		list = append(list, keyValue{Key: k, Value: m[k]})
	}
	return list
}
