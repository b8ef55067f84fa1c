package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lyrics-panel/internal/panel"
	"lyrics-panel/pkg/notify"
)

var logger = log.With().Str("component", "ipc").Logger()

// DefaultWriteTimeout 客户端不读数据时，超过该时间就断开它
const DefaultWriteTimeout = 500 * time.Millisecond

// 消息类型
const (
	TypeHello  = "hello"
	TypeFrame  = "frame"
	TypeScroll = "scroll"
	TypeNotify = "notify"
)

// Envelope is one JSON line on the socket.
type Envelope struct {
	Type     string             `json:"type"`
	ClientID string             `json:"client_id,omitempty"`
	Frame    *panel.Frame       `json:"frame,omitempty"`
	Scroll   *panel.ScrollEvent `json:"scroll,omitempty"`
	Notify   *notify.Message    `json:"notify,omitempty"`
}

// Server streams panel output to GUI clients over a unix socket. It
// implements panel.Sink and notify.Notifier.
type Server struct {
	socketPath      string
	listener        net.Listener
	clientConns     map[net.Conn]string
	clientConnsLock sync.Mutex
	frame           []byte
	frameLock       sync.Mutex
	lockFile        *os.File
	lockFilePath    string
	writeTimeout    time.Duration
}

func NewServer(socketPath string) *Server {
	return &Server{
		socketPath:   socketPath,
		clientConns:  make(map[net.Conn]string),
		lockFilePath: socketPath + ".lock",
		writeTimeout: DefaultWriteTimeout,
	}
}

func (s *Server) checkAndCleanOldLock() {
	// 检查锁文件是否存在
	if _, err := os.Stat(s.lockFilePath); os.IsNotExist(err) {
		return
	}

	content, err := os.ReadFile(s.lockFilePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		// 锁文件为空或PID格式不正确
		logger.Warn().Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	if !isProcessRunning(pid) {
		logger.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}

	logger.Info().Int("existing_pid", pid).Msg("Another process is still running")
}

// isProcessRunning 用 kill(pid, 0) 检查进程是否存在
func isProcessRunning(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	// 尝试获取独占锁
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("another lyrics panel instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// 拿到锁之后才清空，避免抹掉正在运行的实例的PID
	if err := file.Truncate(0); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	logger.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile != nil {
		syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
		s.lockFile.Close()
		os.Remove(s.lockFilePath)
		logger.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
		s.lockFile = nil
	}
}

func (s *Server) Start() error {
	// 首先尝试获取进程锁
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	logger.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	go s.acceptConnections()

	return nil
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	id := uuid.NewString()

	// 先发送 hello 和最近一帧，再加入广播列表
	hello, _ := encode(Envelope{Type: TypeHello, ClientID: id})
	s.frameLock.Lock()
	frame := s.frame
	s.frameLock.Unlock()
	if err := s.write(conn, hello); err != nil {
		logger.Error().Err(err).Str("client_id", id).Msg("Failed to greet client")
		conn.Close()
		return
	}
	if frame != nil {
		if err := s.write(conn, frame); err != nil {
			logger.Error().Err(err).Str("client_id", id).Msg("Failed to send initial frame")
		}
	}

	s.clientConnsLock.Lock()
	s.clientConns[conn] = id
	s.clientConnsLock.Unlock()
	logger.Info().Str("client_id", id).Msg("GUI client connected")

	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}

	s.clientConnsLock.Lock()
	delete(s.clientConns, conn)
	s.clientConnsLock.Unlock()
	conn.Close()
	logger.Info().Str("client_id", id).Msg("GUI client disconnected")
}

// write 带超时写入，避免卡住的客户端阻塞广播
func (s *Server) write(conn net.Conn, b []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(b)
	return err
}

func encode(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Frame broadcasts f and keeps it for clients that connect later.
func (s *Server) Frame(f panel.Frame) {
	b, err := encode(Envelope{Type: TypeFrame, Frame: &f})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode frame")
		return
	}
	s.frameLock.Lock()
	s.frame = b
	s.frameLock.Unlock()
	s.broadcast(b)
}

func (s *Server) Scroll(e panel.ScrollEvent) {
	if b, err := encode(Envelope{Type: TypeScroll, Scroll: &e}); err == nil {
		s.broadcast(b)
	}
}

func (s *Server) Notify(m notify.Message) {
	if b, err := encode(Envelope{Type: TypeNotify, Notify: &m}); err == nil {
		s.broadcast(b)
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	return len(s.clientConns)
}

func (s *Server) broadcast(b []byte) {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()

	for conn, id := range s.clientConns {
		if err := s.write(conn, b); err != nil {
			logger.Error().Err(err).Str("client_id", id).Msg("Failed to write to client, removing")
			conn.Close()
			delete(s.clientConns, conn)
		}
	}
}

func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.clientConnsLock.Lock()
	for conn := range s.clientConns {
		conn.Close()
		delete(s.clientConns, conn)
	}
	s.clientConnsLock.Unlock()
	s.releaseLock()
}
