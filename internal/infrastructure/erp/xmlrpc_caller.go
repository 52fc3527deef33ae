package erp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/rpc"
	"time"

	"github.com/kolo/xmlrpc"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// Caller executes one XML-RPC call against an Odoo endpoint ("common" or "object").
type Caller interface {
	Call(ctx context.Context, endpoint, method string, args []any) (any, error)
}

// XMLRPCCaller implements Caller over HTTP using kolo/xmlrpc. Every call
// is bounded by timeout and by ctx.
type XMLRPCCaller struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
}

// NewXMLRPCCaller creates a caller for the Odoo instance at baseURL
func NewXMLRPCCaller(baseURL string, timeout time.Duration) *XMLRPCCaller {
	return &XMLRPCCaller{
		baseURL:   baseURL,
		timeout:   timeout,
		transport: http.DefaultTransport,
	}
}

// contextTransport attaches a context to requests issued by the xmlrpc client,
// which has no context-aware API of its own.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// Call implements Caller. Server faults wrap integration.ErrERPFault; every
// other failure wraps integration.ErrERPUnavailable.
func (c *XMLRPCCaller) Call(ctx context.Context, endpoint, method string, args []any) (any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	client, err := xmlrpc.NewClient(c.baseURL+"/xmlrpc/2/"+endpoint, &contextTransport{ctx: ctx, base: c.transport})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrERPUnavailable, err)
	}
	defer client.Close()

	var reply any
	if err := client.Call(method, args, &reply); err != nil {
		var fault xmlrpc.FaultError
		var serverErr rpc.ServerError
		if errors.As(err, &fault) || errors.As(err, &serverErr) {
			return nil, fmt.Errorf("%w: %s.%s: %v", integration.ErrERPFault, endpoint, method, err)
		}
		return nil, fmt.Errorf("%w: %s.%s: %v", integration.ErrERPUnavailable, endpoint, method, err)
	}
	return reply, nil
}

var _ Caller = (*XMLRPCCaller)(nil)
