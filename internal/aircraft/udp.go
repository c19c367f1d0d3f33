package aircraft

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Telemetry is one decoded XGPS2 sentence.
type Telemetry struct {
	Longitude float64
	Latitude  float64
	Altitude  float64 // meters
	Track     float64 // degrees
	Speed     float64 // meters/second
}

// parseXGPS2 decodes "XGPS2,<lon>,<lat>,<alt_m>,<track_deg>,<speed_mps>".
// One sentence per datagram; any deviation from the expected field count
// or a non-numeric field is a parse error.
func parseXGPS2(line string) (Telemetry, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 6 || fields[0] != "XGPS2" {
		return Telemetry{}, fmt.Errorf("aircraft: malformed XGPS2 sentence %q", line)
	}
	values := make([]float64, 5)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Telemetry{}, fmt.Errorf("aircraft: invalid field %d in %q: %w", i+1, line, err)
		}
		values[i] = v
	}
	return Telemetry{
		Longitude: values[0],
		Latitude:  values[1],
		Altitude:  values[2],
		Track:     values[3],
		Speed:     values[4],
	}, nil
}

// UDPListener receives XGPS2 datagrams on a UDP port and forwards
// decoded telemetry to Updates. Malformed datagrams are counted and
// dropped rather than terminating the listener.
type UDPListener struct {
	Updates chan Telemetry

	port    int
	dropped uint64
}

// NewUDPListener returns a listener that will bind to port once Run is
// called. Updates is buffered so a transient aggregator stall doesn't
// backpressure the socket read loop.
func NewUDPListener(port int) *UDPListener {
	return &UDPListener{
		Updates: make(chan Telemetry, 64),
		port:    port,
	}
}

// Run binds the UDP socket and reads datagrams until ctx is cancelled
// or the socket errors. It is the caller's responsibility to run this
// in its own goroutine.
func (l *UDPListener) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: l.port})
	if err != nil {
		return fmt.Errorf("aircraft: listen udp :%d: %w", l.port, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 512)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("aircraft: udp read: %w", err)
		}

		telemetry, perr := parseXGPS2(string(buf[:n]))
		if perr != nil {
			atomic.AddUint64(&l.dropped, 1)
			logrus.WithError(perr).Debug("aircraft: dropped malformed telemetry datagram")
			continue
		}

		select {
		case l.Updates <- telemetry:
		case <-ctx.Done():
			return nil
		default:
			logrus.Warn("aircraft: telemetry update channel full, dropping sample")
		}
	}
}

// Dropped returns the number of malformed datagrams discarded so far.
func (l *UDPListener) Dropped() uint64 {
	return atomic.LoadUint64(&l.dropped)
}
