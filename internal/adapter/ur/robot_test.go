package ur

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
	"github.com/cam-andersen/InventorySystemV3/internal/adapter/ursim"
	"github.com/cam-andersen/InventorySystemV3/internal/adaptertest"
	"github.com/cam-andersen/InventorySystemV3/internal/transport"
)

type sent struct {
	endpoint transport.Endpoint
	payload  string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
	fail map[int]error // by port
}

func (s *recordingSender) Send(ctx context.Context, ep transport.Endpoint, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[ep.Port]; err != nil {
		return err
	}
	s.sent = append(s.sent, sent{ep, payload})
	return nil
}

func (s *recordingSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

func TestNewDefaults(t *testing.T) {
	r := New("ur-1", Config{})
	assert.Equal(t, transport.Endpoint{Host: "localhost", Port: 29999}, r.ControlEndpoint())
	assert.Equal(t, transport.Endpoint{Host: "localhost", Port: 30002}, r.ProgramEndpoint())
	assert.Equal(t, "UR", r.GetModel())
}

func TestPickProtocolShape(t *testing.T) {
	rec := &recordingSender{}
	r := New("ur-1", Config{Host: "robot.local"}, WithSender(rec))

	require.NoError(t, r.Pick(context.Background(), 2))

	got := rec.all()
	require.Len(t, got, 2)

	assert.Equal(t, 29999, got[0].endpoint.Port)
	assert.Equal(t, "brake release\n", got[0].payload)

	assert.Equal(t, 30002, got[1].endpoint.Port)
	assert.Contains(t, got[1].payload, "ITEM_X = 2")
	assert.True(t, strings.HasSuffix(got[1].payload, "\n"))
	assert.False(t, strings.HasSuffix(got[1].payload, "\n\n"))
	assert.Equal(t, "robot.local", got[1].endpoint.Host)
}

func TestPickInvalidLocationSendsNothing(t *testing.T) {
	rec := &recordingSender{}
	r := New("ur-1", Config{}, WithSender(rec))

	for _, loc := range []int{0, 4} {
		err := r.Pick(context.Background(), loc)
		assert.ErrorIs(t, err, adapter.ErrInvalidLocation)
	}
	assert.Empty(t, rec.all())
}

func TestPickControlFailureSkipsProgram(t *testing.T) {
	refused := &transport.Error{Code: transport.ErrConnectionRefused, Op: "dial", Err: errors.New("refused")}
	rec := &recordingSender{fail: map[int]error{29999: refused}}
	r := New("ur-1", Config{}, WithSender(rec))

	err := r.Pick(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrUnavailable)
	assert.ErrorIs(t, err, transport.ErrConnectionRefused)
	assert.Empty(t, rec.all())
	assert.Equal(t, "unavailable", r.GetStatus())
}

func TestRunProgramNormalizesTerminator(t *testing.T) {
	rec := &recordingSender{}
	r := New("ur-1", Config{}, WithSender(rec))

	require.NoError(t, r.RunProgram(context.Background(), "textmsg(\"hi\")\n\n"))
	assert.Equal(t, "textmsg(\"hi\")\n", rec.all()[0].payload)
}

func TestPickCancelled(t *testing.T) {
	rec := &recordingSender{}
	r := New("ur-1", Config{}, WithSender(rec))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.Pick(ctx, 1), adapter.ErrCancelled)
	assert.Empty(t, rec.all())
}

func startSimulator(t *testing.T) (*ursim.Server, Config) {
	t.Helper()

	sim := ursim.NewServer(ursim.Config{Host: "127.0.0.1"}, nil)
	require.NoError(t, sim.Start())
	t.Cleanup(func() { _ = sim.Close() })

	return sim, Config{
		Host:        "127.0.0.1",
		ControlPort: portOf(t, sim.ControlAddr()),
		ProgramPort: portOf(t, sim.ProgramAddr()),
		SendTimeout: time.Second,
	}
}

func portOf(t *testing.T, addr string) int {
	t.Helper()
	_, p, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

// TestURRobotConformance runs the conformance suite against the simulator over real TCP.
func TestURRobotConformance(t *testing.T) {
	_, cfg := startSimulator(t)

	adaptertest.RunConformance(t, func() adapter.IRobotAdapter {
		return New("ur-sim", cfg)
	}, adaptertest.DefaultCapabilities("ur"))
}

func TestPickAgainstSimulator(t *testing.T) {
	sim, cfg := startSimulator(t)
	r := New("ur-sim", cfg)

	require.NoError(t, r.Pick(context.Background(), 3))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := sim.WaitForMessages(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"brake release\n"}, sim.ChannelMessages(ursim.ChannelControl))
	programs := sim.ChannelMessages(ursim.ChannelProgram)
	require.Len(t, programs, 1)
	assert.Contains(t, programs[0], "ITEM_X = 3")
}

func TestPickSimulatorRefusesControl(t *testing.T) {
	sim, cfg := startSimulator(t)
	require.NoError(t, sim.SetFaultMode(ursim.FaultRefuseControl))

	r := New("ur-sim", cfg)
	err := r.Pick(context.Background(), 1)
	assert.ErrorIs(t, err, adapter.ErrUnavailable)
	assert.Empty(t, sim.ChannelMessages(ursim.ChannelProgram))
}
