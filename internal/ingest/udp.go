package ingest

import (
	"net"
	"sync"
	"time"
)

// UDPSocket is the subset of *net.UDPConn the receive loop needs.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory creates bound UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory binds real sockets with net.ListenUDP.
type RealUDPSocketFactory struct{}

// ListenUDP binds a *net.UDPConn. *net.UDPConn already satisfies UDPSocket.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Listen binds a UDP socket on all interfaces at port and sizes its receive
// buffer. Port 0 picks an ephemeral port.
func Listen(factory UDPSocketFactory, port, bufferSize int) (UDPSocket, error) {
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}
	sock, err := factory.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	if bufferSize > 0 {
		// Best effort; the kernel may cap the value.
		_ = sock.SetReadBuffer(bufferSize)
	}
	return sock, nil
}

// MockUDPSocket replays queued datagrams and then reports read timeouts.
// It is safe for use by one reader and any number of inspecting goroutines.
type MockUDPSocket struct {
	mu sync.Mutex

	packets  [][]byte
	next     int
	closed   bool
	drained  bool
	deadline time.Time
	bufSize  int
	addr     *net.UDPAddr

	// ReadError, if set, is returned once by the next read.
	ReadError error
	// OnDrained runs once, on the first read after the queue is empty.
	OnDrained func()
}

// NewMockUDPSocket queues packets for ReadFromUDP.
func NewMockUDPSocket(packets ...[]byte) *MockUDPSocket {
	return &MockUDPSocket{
		packets: packets,
		addr:    &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000},
	}
}

// Push queues more datagrams.
func (m *MockUDPSocket) Push(packets ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, packets...)
	m.drained = false
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, nil, net.ErrClosed
	}
	if err := m.ReadError; err != nil {
		m.ReadError = nil
		m.mu.Unlock()
		return 0, nil, err
	}
	if m.next < len(m.packets) {
		n := copy(b, m.packets[m.next])
		m.next++
		m.mu.Unlock()
		return n, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}, nil
	}
	var hook func()
	if !m.drained {
		m.drained = true
		hook = m.OnDrained
	}
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	// Keep an idle reader from spinning.
	time.Sleep(time.Millisecond)
	return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
}

func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufSize = bytes
	return nil
}

func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadline = t
	return nil
}

func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockUDPSocket) LocalAddr() net.Addr { return m.addr }

// Closed reports whether Close was called.
func (m *MockUDPSocket) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ReadBufferSize returns the value last passed to SetReadBuffer.
func (m *MockUDPSocket) ReadBufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bufSize
}

// ReadDeadline returns the deadline last passed to SetReadDeadline.
func (m *MockUDPSocket) ReadDeadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

// MockUDPSocketFactory hands out a fixed socket, or fails with Error.
type MockUDPSocketFactory struct {
	mu sync.Mutex

	Socket *MockUDPSocket
	Error  error
	Calls  []*net.UDPAddr
}

func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, laddr)
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
