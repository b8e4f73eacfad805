package rpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/kolo/xmlrpc"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
)

// Identity describes how to reach the scheduler's XML-RPC endpoint.
type Identity struct {
	URI           string
	Username      string
	Token         string
	Proxy         string
	Timeout       time.Duration
	VerifySSLCert bool
}

// Endpoint returns the URI with credentials embedded as userinfo.
func (id Identity) Endpoint() (string, error) {
	u, err := url.Parse(id.URI)
	if err != nil {
		return "", fmt.Errorf("parse scheduler uri: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("scheduler uri %q needs a scheme and a host", id.URI)
	}
	if id.Username != "" {
		u.User = url.UserPassword(id.Username, id.Token)
	}
	return u.String(), nil
}

// XMLRPCCaller is the Caller backed by a real XML-RPC connection. It is created
// once per process and holds no per-job state.
type XMLRPCCaller struct {
	client *xmlrpc.Client
}

func NewXMLRPCCaller(id Identity) (*XMLRPCCaller, error) {
	endpoint, err := id.Endpoint()
	if err != nil {
		return nil, err
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: id.Timeout,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !id.VerifySSLCert},
	}
	if id.Proxy != "" {
		proxyURL, err := url.Parse(id.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		base.Proxy = http.ProxyURL(proxyURL)
	}

	client, err := xmlrpc.NewClient(endpoint, statusTransport{base: base})
	if err != nil {
		return nil, fmt.Errorf("create xmlrpc client: %w", err)
	}
	return &XMLRPCCaller{client: client}, nil
}

func (c *XMLRPCCaller) Call(ctx context.Context, method string, args []interface{}, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if args == nil {
		args = []interface{}{}
	}
	return classify(c.client.Call(method, args, reply))
}

func (c *XMLRPCCaller) Close() error { return c.client.Close() }

// statusTransport turns non-2xx answers into ProtocolErrors before the
// XML-RPC codec sees them.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, &ProtocolError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &ProtocolError{Code: resp.StatusCode, Msg: resp.Status}
	}
	return resp, nil
}

// Client exposes the scheduler operations used by the job tracker. Every call
// goes through the retrying Proxy.
type Client struct {
	proxy *Proxy
	log   *zerolog.Logger
}

func NewClient(proxy *Proxy, log *zerolog.Logger) *Client {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Client{proxy: proxy, log: log}
}

func (c *Client) Submit(ctx context.Context, definition string) (string, error) {
	var reply interface{}
	if err := c.proxy.Call(ctx, "scheduler.jobs.submit", &reply, definition); err != nil {
		return "", err
	}
	// multinode definitions come back as a list of ids, the first one is the
	// job we follow
	if ids, ok := reply.([]interface{}); ok {
		if len(ids) == 0 {
			return "", fmt.Errorf("scheduler.jobs.submit returned no job id")
		}
		reply = ids[0]
	}
	switch v := reply.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		c.log.Debug().Str("reply", spew.Sdump(reply)).Msg("unexpected submit reply")
		return "", fmt.Errorf("scheduler.jobs.submit returned %T", reply)
	}
}

func (c *Client) Cancel(ctx context.Context, jobID string) error {
	var reply interface{}
	return c.proxy.Call(ctx, "scheduler.jobs.cancel", &reply, jobArg(jobID))
}

type jobState struct {
	JobState string `mapstructure:"job_state"`
}

func (c *Client) JobState(ctx context.Context, jobID string) (string, error) {
	var reply map[string]interface{}
	if err := c.proxy.Call(ctx, "scheduler.job_state", &reply, jobArg(jobID)); err != nil {
		return "", err
	}
	var state jobState
	if err := mapstructure.Decode(reply, &state); err != nil {
		c.log.Debug().Str("reply", spew.Sdump(reply)).Msg("unexpected job_state reply")
		return "", fmt.Errorf("decode job state: %w", err)
	}
	return state.JobState, nil
}

func (c *Client) Logs(ctx context.Context, jobID string, offset int) (bool, []byte, error) {
	var reply []interface{}
	if err := c.proxy.Call(ctx, "scheduler.jobs.logs", &reply, jobArg(jobID), offset); err != nil {
		return false, nil, err
	}
	if len(reply) != 2 {
		c.log.Debug().Str("reply", spew.Sdump(reply)).Msg("unexpected logs reply")
		return false, nil, fmt.Errorf("scheduler.jobs.logs returned %d values, want 2", len(reply))
	}
	finished, _ := reply[0].(bool)
	switch data := reply[1].(type) {
	case []byte:
		return finished, data, nil
	case string:
		return finished, []byte(data), nil
	case nil:
		return finished, nil, nil
	default:
		return finished, nil, fmt.Errorf("scheduler.jobs.logs returned %T payload", reply[1])
	}
}

func (c *Client) Results(ctx context.Context, jobID string) ([]byte, error) {
	var reply string
	if err := c.proxy.Call(ctx, "results.get_testjob_results_yaml", &reply, jobArg(jobID)); err != nil {
		return nil, err
	}
	return []byte(reply), nil
}

func (c *Client) Show(ctx context.Context, jobID string) (map[string]interface{}, error) {
	var reply map[string]interface{}
	if err := c.proxy.Call(ctx, "scheduler.jobs.show", &reply, jobArg(jobID)); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) Validate(ctx context.Context, definition string) (map[string]interface{}, error) {
	var reply interface{}
	if err := c.proxy.Call(ctx, "scheduler.jobs.validate", &reply, definition, true); err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, nil
	}
	errs := map[string]interface{}{}
	if err := mapstructure.Decode(reply, &errs); err != nil {
		return map[string]interface{}{"error": fmt.Sprint(reply)}, nil
	}
	return errs, nil
}

// jobArg sends numeric ids as XML-RPC ints, which is what the scheduler expects.
func jobArg(jobID string) interface{} {
	if n, err := strconv.Atoi(jobID); err == nil {
		return n
	}
	return jobID
}
