// Package transport provides the byte channels the console driver runs over:
// a local serial port or a TCP bridge, plus the read pump that feeds the
// driver's receive entry point.
package transport

import (
	"context"
	"errors"
	"io"
)

// Conn is a raw byte channel to the device.
type Conn interface {
	io.ReadWriteCloser
}

// Pump reads conn until the context is cancelled or the peer goes away,
// handing each chunk to receive. Cancellation closes the connection to
// unblock the read; a clean EOF and a cancelled context both return nil.
func Pump(ctx context.Context, conn Conn, receive func([]byte)) error {
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				receive(append([]byte(nil), buf[:n]...))
			}
			if err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = conn.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}
