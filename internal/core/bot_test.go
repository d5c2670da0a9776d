package core

import (
	"fmt"
	"io"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pydawan/pydabot/internal/announce"
	"github.com/pydawan/pydabot/internal/irc"
	"github.com/pydawan/pydabot/internal/listener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	Target  string
	Message string
}

// fakeConn is an in-memory irc.Conn. When ackQuit is set the "server" closes the
// connection as soon as QUIT is sent; otherwise only Disconnect ends Run.
type fakeConn struct {
	cfg     irc.Config
	ackQuit bool
	runErr  error

	mu          sync.Mutex
	callbacks   map[string][]func(*irc.Event)
	joined      []string
	messages    []sentMessage
	raw         []string
	quits       int
	disconnects int

	connected atomic.Bool
	started   chan struct{}
	stop      chan error
	stopOnce  sync.Once
}

func newFakeConn(cfg irc.Config, ackQuit bool) *fakeConn {
	return &fakeConn{
		cfg:       cfg,
		ackQuit:   ackQuit,
		callbacks: make(map[string][]func(*irc.Event)),
		started:   make(chan struct{}),
		stop:      make(chan error, 1),
	}
}

func (f *fakeConn) OnEvent(code string, fn func(*irc.Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[code] = append(f.callbacks[code], fn)
}

func (f *fakeConn) Run() error {
	if f.runErr != nil {
		close(f.started)
		return f.runErr
	}
	f.connected.Store(true)
	close(f.started)
	err := <-f.stop
	f.connected.Store(false)
	return err
}

func (f *fakeConn) end(err error) {
	f.stopOnce.Do(func() { f.stop <- err })
}

func (f *fakeConn) Quit() {
	f.mu.Lock()
	f.quits++
	f.mu.Unlock()
	if f.ackQuit {
		f.end(nil)
	}
}

func (f *fakeConn) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	f.end(irc.ErrClosed)
}

func (f *fakeConn) Connected() bool { return f.connected.Load() }

func (f *fakeConn) Join(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, channel)
}

func (f *fakeConn) Privmsg(target, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{Target: target, Message: message})
}

func (f *fakeConn) SendRaw(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = append(f.raw, line)
}

// emit delivers an event once Run has been entered
func (f *fakeConn) emit(t *testing.T, code, nick string, args ...string) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(time.Second):
		t.Fatal("connection never started")
	}
	f.mu.Lock()
	fns := slices.Clone(f.callbacks[code])
	f.mu.Unlock()
	for _, fn := range fns {
		fn(&irc.Event{Code: code, Nick: nick, Arguments: args, Conn: f})
	}
}

func (f *fakeConn) Messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

func (f *fakeConn) Joined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joined...)
}

func (f *fakeConn) Raw() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.raw...)
}

func (f *fakeConn) Counts() (quits, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quits, f.disconnects
}

// fakeDialer hands out a fresh fakeConn per Start and remembers them in order
type fakeDialer struct {
	ackQuit bool
	runErr  error

	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(cfg irc.Config) irc.Conn {
	c := newFakeConn(cfg, d.ackQuit)
	c.runErr = d.runErr
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, c)
	return c
}

func (d *fakeDialer) Last(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.conns)
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type recordingListener struct {
	listener.Adapter

	mu          sync.Mutex
	connects    int
	disconnects []error
	messages    []string
}

func (r *recordingListener) OnConnect(*listener.ConnectEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
}

func (r *recordingListener) OnDisconnect(e *listener.ConnectEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, e.Err)
}

func (r *recordingListener) OnMessage(e *listener.MessageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, e.Nick+": "+e.Message)
}

func (r *recordingListener) snapshot() (int, []error, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects, append([]error(nil), r.disconnects...), append([]string(nil), r.messages...)
}

var testIdentity = Identity{Hostname: "irc.example.org", Port: 6667, Nickname: "pydabot"}

func newTestBot(d *fakeDialer, opts ...Option) *Bot {
	return NewBot(testIdentity, append([]Option{WithDialer(d.Dial)}, opts...)...)
}

func TestBot_StartTwiceFails(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	b := newTestBot(d)

	require.NoError(t, b.Start())
	assert.Equal(t, StateRunning, b.State())
	assert.ErrorIs(t, b.Start(), ErrAlreadyRunning)
	assert.Equal(t, 1, d.Count())

	require.NoError(t, b.Stop())
	assert.Equal(t, StateIdle, b.State())
}

func TestBot_StopWhenIdleFails(t *testing.T) {
	b := newTestBot(&fakeDialer{})
	assert.ErrorIs(t, b.Stop(), ErrNotRunning)
}

func TestBot_StartRejectsInvalidIdentity(t *testing.T) {
	d := &fakeDialer{}
	b := NewBot(Identity{Hostname: "irc.example.org"}, WithDialer(d.Dial))

	assert.Error(t, b.Start())
	assert.Equal(t, StateIdle, b.State())
	assert.Zero(t, d.Count())
}

func TestBot_DialUsesIdentity(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	b := NewBot(Identity{Hostname: "irc.example.org", Port: 6697, Nickname: "pyda", Password: "s3cret", UseTLS: true},
		WithDialer(d.Dial), WithQuitMessage("bye"))

	require.NoError(t, b.Start())
	defer b.Stop()

	cfg := d.Last(t).cfg
	assert.Equal(t, "irc.example.org:6697", cfg.Server())
	assert.Equal(t, "pyda", cfg.Nickname)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.True(t, cfg.UseTLS)
	assert.Equal(t, "bye", cfg.QuitMessage)
}

func TestBot_GracefulStopWhenServerAcknowledgesQuit(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	rec := &recordingListener{}
	b := newTestBot(d, WithGracePeriod(time.Second))
	b.AddListener(rec)

	require.NoError(t, b.Start())
	conn := d.Last(t)
	<-conn.started
	assert.True(t, b.IsConnected())

	start := time.Now()
	require.NoError(t, b.Stop())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	quits, disconnects := conn.Counts()
	assert.Equal(t, 1, quits)
	assert.Zero(t, disconnects)
	assert.False(t, b.IsRunning())
	assert.False(t, b.IsConnected())

	_, dis, _ := rec.snapshot()
	require.Len(t, dis, 1)
	assert.NoError(t, dis[0])
}

func TestBot_StopForcesDisconnectAfterGracePeriod(t *testing.T) {
	d := &fakeDialer{ackQuit: false}
	b := newTestBot(d, WithGracePeriod(50*time.Millisecond))

	require.NoError(t, b.Start())
	conn := d.Last(t)
	<-conn.started

	start := time.Now()
	require.NoError(t, b.Stop())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	quits, disconnects := conn.Counts()
	assert.Equal(t, 1, quits)
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, StateIdle, b.State())
	assert.False(t, b.IsRunning())
}

func TestBot_DefaultGracePeriodBoundsStop(t *testing.T) {
	d := &fakeDialer{ackQuit: false}
	b := newTestBot(d)

	require.NoError(t, b.Start())
	<-d.Last(t).started

	start := time.Now()
	require.NoError(t, b.Stop())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 1500*time.Millisecond)
	_, disconnects := d.Last(t).Counts()
	assert.Equal(t, 1, disconnects)
}

func TestBot_StopBoundedAgainstSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	b := NewBot(Identity{
		Hostname: "127.0.0.1",
		Port:     ln.Addr().(*net.TCPAddr).Port,
		Nickname: "pydabot",
	}, WithGracePeriod(200*time.Millisecond))

	require.NoError(t, b.Start())
	require.Eventually(t, b.IsConnected, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, b.Stop())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, StateIdle, b.State())
	assert.False(t, b.IsRunning())
	assert.False(t, b.IsConnected())

	select {
	case <-serverDone:
	case <-time.After(time.Second):
		t.Fatal("server connection left open after Stop")
	}
}

func TestBot_ConnectFailureIsReportedAndStopStillWorks(t *testing.T) {
	d := &fakeDialer{runErr: fmt.Errorf("%w: refused", irc.ErrConnectFailed)}
	rec := &recordingListener{}
	b := newTestBot(d)
	b.AddListener(rec)

	require.NoError(t, b.Start())

	assert.Eventually(t, func() bool { return !b.IsRunning() }, time.Second, time.Millisecond)
	assert.Equal(t, StateRunning, b.State())
	assert.ErrorIs(t, b.Start(), ErrAlreadyRunning)

	_, dis, _ := rec.snapshot()
	require.Len(t, dis, 1)
	assert.ErrorIs(t, dis[0], irc.ErrConnectFailed)

	start := time.Now()
	require.NoError(t, b.Stop())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StateIdle, b.State())
}

func TestBot_WelcomeJoinsChannelsAndNotifiesListeners(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	rec := &recordingListener{}
	b := newTestBot(d)
	b.AddChannel("pydawan")
	b.AddChannel("#golang")
	b.AddListener(rec)

	require.NoError(t, b.Start())
	defer b.Stop()

	conn := d.Last(t)
	conn.emit(t, irc.EventWelcome, "", "pydabot", "Welcome")

	assert.ElementsMatch(t, []string{"#pydawan", "#golang"}, conn.Joined())
	connects, _, _ := rec.snapshot()
	assert.Equal(t, 1, connects)
}

func TestBot_DispatchesMessagesAndPings(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	rec := &recordingListener{}
	b := newTestBot(d)
	b.AddListener(rec)
	b.AddListener(listener.NewPong())

	require.NoError(t, b.Start())
	defer b.Stop()

	conn := d.Last(t)
	conn.emit(t, irc.EventPrivmsg, "alice", "#pydawan", "hello there")
	conn.emit(t, irc.EventPing, "", "irc.example.org")

	_, _, msgs := rec.snapshot()
	assert.Equal(t, []string{"alice: hello there"}, msgs)
	assert.Equal(t, []string{"PONG :irc.example.org"}, conn.Raw())
}

func TestBot_ListenersAreSnapshottedAtStart(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	first := &recordingListener{}
	late := &recordingListener{}
	b := newTestBot(d)
	b.AddListener(first)

	require.NoError(t, b.Start())
	b.AddListener(late)
	b.AddChannel("late")

	conn := d.Last(t)
	conn.emit(t, irc.EventWelcome, "")
	conn.emit(t, irc.EventPrivmsg, "bob", "#pydawan", "hi")

	_, _, msgs := late.snapshot()
	assert.Empty(t, msgs)
	assert.Empty(t, conn.Joined())
	_, _, msgs = first.snapshot()
	assert.Len(t, msgs, 1)

	require.NoError(t, b.Restart())
	defer b.Stop()

	conn = d.Last(t)
	conn.emit(t, irc.EventWelcome, "")
	conn.emit(t, irc.EventPrivmsg, "bob", "#pydawan", "again")
	_, _, msgs = late.snapshot()
	assert.Equal(t, []string{"bob: again"}, msgs)
	assert.Equal(t, []string{"#late"}, conn.Joined())
}

func TestBot_RemoveListenerAndChannel(t *testing.T) {
	b := newTestBot(&fakeDialer{})
	l := &recordingListener{}

	b.AddListener(l)
	b.AddListener(l)
	assert.Len(t, b.Listeners(), 1)
	b.RemoveListener(l)
	assert.Empty(t, b.Listeners())

	b.AddChannel("b")
	b.AddChannel("a")
	b.AddChannel("a")
	assert.Equal(t, []string{"a", "b"}, b.Channels())
	b.RemoveChannel("a")
	assert.Equal(t, []string{"b"}, b.Channels())
}

func TestBot_SetIdentityOnlyWhileIdle(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	b := newTestBot(d)

	next := Identity{Hostname: "irc.libera.chat", Port: 6697, Nickname: "pyda2", UseTLS: true}
	require.NoError(t, b.SetIdentity(next))
	assert.Equal(t, next, b.Identity())

	require.NoError(t, b.Start())
	assert.ErrorIs(t, b.SetIdentity(testIdentity), ErrAlreadyRunning)
	require.NoError(t, b.Stop())

	assert.Equal(t, "irc.libera.chat:6697", d.Last(t).cfg.Server())
}

func TestBot_SendMessage(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	b := newTestBot(d)

	assert.ErrorIs(t, b.SendMessage("pydawan", "hi"), ErrNotRunning)

	require.NoError(t, b.Start())
	defer b.Stop()
	<-d.Last(t).started

	require.NoError(t, b.SendMessage("pydawan", "hi"))
	assert.Equal(t, []sentMessage{{Target: "#pydawan", Message: "hi"}}, d.Last(t).Messages())
}

func TestBot_AnnouncementsRunWhileConnected(t *testing.T) {
	worker, err := announce.NewWorker([]announce.Announcement{{Channel: "pydawan", Message: "follow us", Weight: 1}})
	require.NoError(t, err)

	d := &fakeDialer{ackQuit: true}
	b := newTestBot(d, WithWorker(worker), WithSchedule(0, 5*time.Millisecond))
	assert.False(t, b.AnnouncementsScheduled())

	require.NoError(t, b.Start())
	conn := d.Last(t)
	assert.True(t, b.AnnouncementsScheduled())

	assert.Eventually(t, func() bool { return len(conn.Messages()) >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, sentMessage{Target: "#pydawan", Message: "follow us"}, conn.Messages()[0])

	require.NoError(t, b.Stop())
	assert.False(t, b.AnnouncementsScheduled())

	sent := len(conn.Messages())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, conn.Messages(), sent)
}

func TestBot_ConcurrentStartStop(t *testing.T) {
	d := &fakeDialer{ackQuit: true}
	b := newTestBot(d)

	var wg sync.WaitGroup
	var started atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Start() == nil {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	require.NoError(t, b.Stop())
}
