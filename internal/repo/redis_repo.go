package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shaiso/Relay/internal/domain"
)

// DefaultRedisAddr — адрес Redis для локальной разработки.
const DefaultRedisAddr = "localhost:6379"

// fetchPageSize — сколько членов ZSET читается за один шаг FetchNextPending.
const fetchPageSize = 50

// maxTxRetries — сколько раз повторяется транзакция, прерванная WATCH.
const maxTxRetries = 10

// NewRedisClient создаёт клиента Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		addr = DefaultRedisAddr
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisTaskRepo — хранилище tasks в Redis.
//
// Раскладка ключей:
//   - {prefix}:task:{id}  — JSON записи
//   - {prefix}:tasks      — ZSET с одинаковым score; член "{created_at_ns}:{seq}:{id}",
//     поэтому лексикографический порядок совпадает с FIFO
//   - {prefix}:tasks:seq  — счётчик Seq
//
// Изменения записи и индекса выполняются в одной транзакции MULTI/EXEC.
type RedisTaskRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisTaskRepo создаёт новый RedisTaskRepo. Пустой prefix заменяется на "relay".
func NewRedisTaskRepo(client *redis.Client, prefix string) *RedisTaskRepo {
	if prefix == "" {
		prefix = "relay"
	}
	return &RedisTaskRepo{client: client, prefix: prefix}
}

// Create сохраняет новую task и заполняет task.Seq.
func (r *RedisTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	key := r.taskKey(task.ID)

	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return persistErr("create", fmt.Errorf("incr seq: %w", err))
	}

	stored := *task
	stored.Seq = seq
	data, err := encodeTask(&stored)
	if err != nil {
		return persistErr("create", fmt.Errorf("marshal task: %w", err))
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("%w: task %s", ErrAlreadyExists, task.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: 0, Member: member(&stored)})
			return nil
		})
		return err
	}, key)
	if err != nil {
		return persistErr("create", err)
	}

	task.Seq = seq
	return nil
}

// FetchNextPending возвращает самую старую task с ScheduledAt <= now.
func (r *RedisTaskRepo) FetchNextPending(ctx context.Context, now time.Time) (*domain.Task, error) {
	for start := int64(0); ; start += fetchPageSize {
		members, err := r.client.ZRange(ctx, r.indexKey(), start, start+fetchPageSize-1).Result()
		if err != nil {
			return nil, persistErr("fetch_next_pending", fmt.Errorf("zrange: %w", err))
		}
		if len(members) == 0 {
			return nil, ErrNotFound
		}

		tasks, err := r.load(ctx, members)
		if err != nil {
			return nil, persistErr("fetch_next_pending", err)
		}
		for i := range tasks {
			if tasks[i].IsEligible(now) {
				return &tasks[i], nil
			}
		}
	}
}

// Update сохраняет счётчик попыток и последнюю ошибку.
func (r *RedisTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	key := r.taskKey(task.ID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := getTask(ctx, tx, key)
		if err != nil {
			return err
		}

		stored.Attempts = task.Attempts
		stored.LastAttemptAt = task.LastAttemptAt
		stored.LastError = task.LastError

		data, err := encodeTask(stored)
		if err != nil {
			return fmt.Errorf("marshal task: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	return persistErr("update", err)
}

// Delete удаляет task по ID.
func (r *RedisTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	key := r.taskKey(id)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := getTask(ctx, tx, key)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, r.indexKey(), member(stored))
			return nil
		})
		return err
	}, key)
	return persistErr("delete", err)
}

// DeleteAll удаляет все tasks.
//
// Индекс под WATCH: если Create успел добавить task между чтением индекса
// и EXEC, транзакция отменяется и повторяется, иначе ключ task остался бы
// без члена индекса.
func (r *RedisTaskRepo) DeleteAll(ctx context.Context) error {
	var err error
	for range maxTxRetries {
		err = r.client.Watch(ctx, func(tx *redis.Tx) error {
			members, err := tx.ZRange(ctx, r.indexKey(), 0, -1).Result()
			if err != nil {
				return fmt.Errorf("zrange: %w", err)
			}

			keys := make([]string, 0, len(members)+1)
			for _, m := range members {
				id, err := idFromMember(m)
				if err != nil {
					continue
				}
				keys = append(keys, r.taskKey(id))
			}
			keys = append(keys, r.indexKey())

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, keys...)
				return nil
			})
			return err
		}, r.indexKey())
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	return persistErr("delete_all", err)
}

// ListAll возвращает все tasks в FIFO порядке.
func (r *RedisTaskRepo) ListAll(ctx context.Context) ([]domain.Task, error) {
	members, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, persistErr("list_all", fmt.Errorf("zrange: %w", err))
	}
	if len(members) == 0 {
		return []domain.Task{}, nil
	}

	tasks, err := r.load(ctx, members)
	if err != nil {
		return nil, persistErr("list_all", err)
	}
	return tasks, nil
}

// --- Helpers ---

// load читает записи для членов индекса, сохраняя порядок.
// Члены без записи (удалены между ZRANGE и MGET) пропускаются.
func (r *RedisTaskRepo) load(ctx context.Context, members []string) ([]domain.Task, error) {
	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := idFromMember(m)
		if err != nil {
			return nil, err
		}
		keys = append(keys, r.taskKey(id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	tasks := make([]domain.Task, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		task, err := decodeTask([]byte(s))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

func getTask(ctx context.Context, tx *redis.Tx, key string) (*domain.Task, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	return decodeTask(data)
}

// redisRecord — JSON записи в Redis. Тело запроса лежит в RawBody
// (base64), а не внутри payload: json.Marshal уплотняет json.RawMessage,
// и байты тела после чтения отличались бы от исходных.
type redisRecord struct {
	domain.Task
	RawBody []byte `json:"raw_body,omitempty"`
}

func encodeTask(task *domain.Task) ([]byte, error) {
	rec := redisRecord{Task: *task}
	rec.Payload, rec.RawBody = splitBody(task.Payload)
	return json.Marshal(&rec)
}

func decodeTask(data []byte) (*domain.Task, error) {
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	joinBody(&rec.Payload, rec.RawBody)
	return &rec.Task, nil
}

func (r *RedisTaskRepo) taskKey(id uuid.UUID) string {
	return r.prefix + ":task:" + id.String()
}

func (r *RedisTaskRepo) indexKey() string {
	return r.prefix + ":tasks"
}

func (r *RedisTaskRepo) seqKey() string {
	return r.prefix + ":tasks:seq"
}

// member строит член ZSET: created_at (ns) и seq дополнены нулями до 20 знаков.
func member(task *domain.Task) string {
	return fmt.Sprintf("%020d:%020d:%s", task.CreatedAt.UnixNano(), task.Seq, task.ID)
}

func idFromMember(m string) (uuid.UUID, error) {
	i := strings.LastIndexByte(m, ':')
	if i < 0 {
		return uuid.Nil, fmt.Errorf("malformed index member %q", m)
	}
	id, err := uuid.Parse(m[i+1:])
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed index member %q: %w", m, err)
	}
	return id, nil
}
