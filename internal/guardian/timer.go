package guardian

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Lakshin-amin/RakshaNet/pkg/logger"
	"github.com/Lakshin-amin/RakshaNet/pkg/metrics"
)

// Timer states. The Scheduled→Cancelled and Scheduled→Fired transitions are
// terminal and mutually exclusive; whichever CAS wins decides the race.
const (
	stateScheduled int32 = iota
	stateCancelled
	stateFired
)

// timer 单个用户的活动倒计时。state 是 cancel 与到期回调
// 竞争的唯一仲裁点。
type timer struct {
	user    string
	firesAt time.Time
	state   atomic.Int32
	stop    chan struct{} // 取消/替换时关闭，提前唤醒休眠中的 goroutine
}

// Registry 维护"每用户至多一个活动计时器"不变量。
// map 只索引当前活动实例；已终态的旧实例直接丢弃，不再查询。
type Registry struct {
	mu        sync.Mutex
	timers    map[string]*timer
	escalator Escalator
	journal   *Journal // 可选的重启恢复日志

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Escalator 到期后的升级入口
type Escalator interface {
	Escalate(ctx context.Context, ev Event) error
}

func NewRegistry(escalator Escalator, journal *Journal) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		timers:    make(map[string]*timer),
		escalator: escalator,
		journal:   journal,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start 启动（或替换）用户的安全计时器，返回到期时刻。
// 旧计时器的到期回调在替换后保证不再触发。
func (r *Registry) Start(ctx context.Context, user string, d time.Duration) time.Time {
	t := &timer{
		user:    user,
		firesAt: time.Now().Add(d),
		stop:    make(chan struct{}),
	}

	r.mu.Lock()
	if old, ok := r.timers[user]; ok {
		// 同一把锁内完成旧实例作废与新实例登记，
		// 并发 Start 的净效果是恰好一个反映最近一次调用的活动计时器
		if old.state.CompareAndSwap(stateScheduled, stateCancelled) {
			close(old.stop)
			metrics.TimerCancelled()
		}
	}
	r.timers[user] = t
	r.mu.Unlock()

	// 日志与调度都在锁外
	if r.journal != nil {
		r.journal.Record(ctx, user, t.firesAt)
	}

	r.wg.Add(1)
	go r.await(t)

	metrics.TimerStarted()
	logger.Info("safety timer started",
		zap.String("user", user),
		zap.Time("fires_at", t.firesAt))
	return t.firesAt
}

// Cancel 尝试取消用户的活动计时器。仅当签到赢下与到期回调的竞争时
// 返回 true；无活动计时器或已到期时幂等返回 false，不视为错误。
func (r *Registry) Cancel(user string) bool {
	r.mu.Lock()
	t, ok := r.timers[user]
	r.mu.Unlock()
	if !ok {
		return false
	}

	if !t.state.CompareAndSwap(stateScheduled, stateCancelled) {
		// 到期回调先写入了终态：竞争失败是定义内的结果，不是错误
		return false
	}
	close(t.stop)
	r.drop(t)

	if r.journal != nil {
		r.journal.Clear(context.Background(), user)
	}
	metrics.TimerCancelled()
	logger.Info("safety timer cancelled", zap.String("user", user))
	return true
}

// Live 返回用户当前是否存在活动计时器（监控/测试用）
func (r *Registry) Live(user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[user]
	return ok && t.state.Load() == stateScheduled
}

// LiveCount 活动计时器总数
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.timers {
		if t.state.Load() == stateScheduled {
			n++
		}
	}
	return n
}

// Close 停止所有计时器 goroutine 并等待退出
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

// await 休眠到期限后通过与 Cancel 相同的 CAS 边界触发 fire。
// 休眠期间不持有任何锁。
func (r *Registry) await(t *timer) {
	defer r.wg.Done()

	select {
	case <-time.After(time.Until(t.firesAt)):
		r.fire(t)
	case <-t.stop:
		// 签到或替换赢得竞争
	case <-r.ctx.Done():
		// 进程关闭
	}
}

// fire 到期回调。CAS 失败说明签到已先一步取消，升级绝不执行。
func (r *Registry) fire(t *timer) {
	if !t.state.CompareAndSwap(stateScheduled, stateFired) {
		return
	}
	r.drop(t)

	if r.journal != nil {
		r.journal.Clear(context.Background(), t.user)
	}
	metrics.TimerFired()
	logger.Warn("safety timer expired, escalating",
		zap.String("user", t.user),
		zap.Time("deadline", t.firesAt))

	// 升级在状态转移之后同步执行；持久化失败无调用方可通知，
	// 记录日志与指标
	err := r.escalator.Escalate(r.ctx, Event{User: t.user, Reason: ReasonTimerExpired})
	if err != nil {
		metrics.EscalationFailed()
		logger.Error("auto escalation failed",
			zap.String("user", t.user),
			zap.Error(err))
	}
}

// drop 从索引中移除该实例（仅当它仍是当前实例）
func (r *Registry) drop(t *timer) {
	r.mu.Lock()
	if cur, ok := r.timers[t.user]; ok && cur == t {
		delete(r.timers, t.user)
	}
	r.mu.Unlock()
}
