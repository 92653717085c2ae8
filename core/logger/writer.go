package logger

import (
	"bufio"
	"io"
	"sync"
)

// asyncWriter decouples log emission from sink I/O with a buffered queue.
// A full queue degrades to a blocking write so records are never dropped.
type asyncWriter struct {
	queue    chan []byte
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once

	mu       sync.Mutex
	sink     *bufio.Writer
	writeErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	dests := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			dests = append(dests, w)
		}
	}
	var out io.Writer = io.Discard
	if len(dests) > 0 {
		out = io.MultiWriter(dests...)
	}
	aw := &asyncWriter{
		queue:    make(chan []byte, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sink:     bufio.NewWriterSize(out, bufSize),
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	for {
		select {
		case data, ok := <-w.queue:
			if !ok {
				w.setErr(w.flush())
				close(w.done)
				return
			}
			if len(data) == 0 {
				continue
			}
			w.setErr(w.write(data))
		case ack := <-w.flushReq:
			ack <- w.flush()
		}
	}
}

// Write enqueues the payload for asynchronous delivery to the sink.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.getErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	data := make([]byte, len(p))
	copy(data, p)
	w.queue <- data
	return nil
}

// Flush waits for the writer to push all buffered content to the sink.
func (w *asyncWriter) Flush() error {
	if err := w.getErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue and reports the first encountered write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		close(w.queue)
	})
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) write(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.sink.Write(p); err != nil {
		return err
	}
	return w.sink.Flush()
}

func (w *asyncWriter) flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sink.Flush()
}

func (w *asyncWriter) getErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeErr
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}
