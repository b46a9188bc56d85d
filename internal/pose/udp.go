package pose

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net"
	"sync"

	"github.com/banshee-data/strike.report/internal/monitoring"
)

// observationPacket is the datagram payload pushed by a co-located estimator.
// The same shape is consumed offline by cmd/tools/pose-pcap.
type observationPacket struct {
	Persons []PersonObservation `json:"persons"`
}

// UDPSource receives observation datagrams pushed by an estimator process
// that watches the camera directly. Infer ignores the frame pixels and
// returns the most recent packet, overwrite-latest: a slow consumer sees a
// stale set, never a backlog.
type UDPSource struct {
	conn net.PacketConn

	mu     sync.Mutex
	latest []PersonObservation

	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewUDPSource binds addr (e.g. ":9901") and starts the receive loop.
func NewUDPSource(addr string) (*UDPSource, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	s := &UDPSource{
		conn:   conn,
		closed: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.receive()
	return s, nil
}

func (s *UDPSource) receive() {
	defer s.wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			monitoring.Logf("pose: udp read error: %v", err)
			continue
		}

		var pkt observationPacket
		if err := json.Unmarshal(buf[:n], &pkt); err != nil {
			monitoring.Logf("pose: dropping malformed datagram (%d bytes): %v", n, err)
			continue
		}

		s.mu.Lock()
		s.latest = pkt.Persons
		s.mu.Unlock()
	}
}

// Infer returns the latest pushed observation set. The image is unused; the
// estimator already saw the frame.
func (s *UDPSource) Infer(ctx context.Context, img image.Image) ([]PersonObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, nil
}

// Close stops the receive loop and releases the socket. Further calls are
// no-ops returning the first call's error.
func (s *UDPSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.conn.Close()
		s.wg.Wait()
	})
	return s.closeErr
}
