package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/star/skygeo/internal/metrics"
)

// writeTimeout bounds each individual SSE write.
const writeTimeout = 30 * time.Second

// client writes SSE frames to one connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *zap.Logger

	messagesSent int64
	bytesSent    int64
}

// sendJSON writes v as a "data: {json}\n\n" frame.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, '\n', '\n')

	if err := c.write(frame); err != nil {
		return err
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	return nil
}

// sendRetry tells the browser how long to wait before reconnecting.
func (c *client) sendRetry(d time.Duration) error {
	return c.write(fmt.Appendf(nil, "retry: %d\n\n", d.Milliseconds()))
}

// sendKeepalive writes an SSE comment line.
func (c *client) sendKeepalive() error {
	return c.write([]byte(":\n\n"))
}

func (c *client) write(b []byte) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", zap.Error(err))
	}

	n, err := c.w.Write(b)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()

	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return nil
}
