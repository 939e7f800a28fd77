package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

const (
	tokenKeyPrefix      = "checkin:token:"
	registrantKeyPrefix = "checkin:registrant:"
	appliedKeyPrefix    = "checkin:op:"
	overridesKeyPrefix  = "checkin:overrides:"
	registrantsSetKey   = "checkin:registrants"

	maxWatchRetries = 5
)

// Bind script result codes.
const (
	bindOK = iota
	bindTokenMissing
	bindRegistrantMissing
	bindTokenNotAvailable
	bindRegistrantHasToken
)

// bindScript applies the token and registrant updates only if the token is
// still available and the registrant holds no token. Redis runs scripts
// atomically, so the check and both writes are one step.
var bindScript = redis.NewScript(`
local rawToken = redis.call('GET', KEYS[1])
if not rawToken then return {1} end
local rawReg = redis.call('GET', KEYS[2])
if not rawReg then return {2} end
local token = cjson.decode(rawToken)
if token.status ~= 'available' then return {3} end
local reg = cjson.decode(rawReg)
if reg.bound_token_code and reg.bound_token_code ~= '' then return {4} end

token.status = 'bound'
token.bound_registrant_id = ARGV[2]
token.bound_at = ARGV[3]
token.version = (token.version or 0) + 1
token.updated_at = ARGV[3]

reg.checked_in = true
reg.checked_in_at = ARGV[3]
reg.checked_in_by_terminal = ARGV[4]
reg.bound_token_code = ARGV[1]
reg.version = (reg.version or 0) + 1
reg.updated_at = ARGV[3]

local encodedToken = cjson.encode(token)
local encodedReg = cjson.encode(reg)
redis.call('SET', KEYS[1], encodedToken)
redis.call('SET', KEYS[2], encodedReg)
if ARGV[5] ~= '' then redis.call('SET', KEYS[3], ARGV[5], 'NX') end
if ARGV[6] ~= '' then redis.call('RPUSH', KEYS[4], ARGV[6]) end
return {0, encodedToken, encodedReg}
`)

// RedisStore is the shared store backed by Redis. Binds run as one Lua
// script; unbind and damage use WATCH on the token key, which every write to
// a bound registrant also touches.
type RedisStore struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func tokenKey(code id.TokenCode) string        { return tokenKeyPrefix + string(code) }
func registrantKey(rid id.RegistrantID) string { return registrantKeyPrefix + string(rid) }
func appliedKey(opID id.OperationID) string    { return appliedKeyPrefix + opID.String() }
func overridesKey(code id.TokenCode) string    { return overridesKeyPrefix + string(code) }

func (s *RedisStore) SaveToken(ctx context.Context, token *models.Token) error {
	if err := token.CheckInvariant(); err != nil {
		return err
	}
	raw, err := json.Marshal(fromToken(token))
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return s.client.Set(ctx, tokenKey(token.Code), raw, 0).Err()
}

func (s *RedisStore) SaveRegistrant(ctx context.Context, r *models.Registrant) error {
	if err := r.CheckInvariant(); err != nil {
		return err
	}
	raw, err := json.Marshal(fromRegistrant(r))
	if err != nil {
		return fmt.Errorf("encode registrant: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, registrantKey(r.ID), raw, 0)
		p.SAdd(ctx, registrantsSetKey, string(r.ID))
		return nil
	})
	return err
}

func (s *RedisStore) FindToken(ctx context.Context, code id.TokenCode) (*models.Token, error) {
	return readToken(ctx, s.client, code)
}

func (s *RedisStore) FindRegistrant(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error) {
	raw, err := s.client.Get(ctx, registrantKey(registrantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("registrant %s: %w", registrantID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeRegistrant(raw)
}

func (s *RedisStore) ListRegistrants(ctx context.Context) ([]*models.Registrant, error) {
	ids, err := s.client.SMembers(ctx, registrantsSetKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, rid := range ids {
		keys[i] = registrantKey(id.RegistrantID(rid))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	list := make([]*models.Registrant, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		r, err := decodeRegistrant([]byte(raw))
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, nil
}

func (s *RedisStore) BindIfAvailable(ctx context.Context, b models.Binding) (*models.BindResult, error) {
	at := b.At.UTC().Format(time.RFC3339Nano)

	var applied, override string
	if !b.OpID.IsNil() {
		raw, err := json.Marshal(appliedRecord{
			OpID:         uuid.UUID(b.OpID),
			TokenCode:    string(b.TokenCode),
			RegistrantID: string(b.RegistrantID),
			TerminalID:   string(b.TerminalID),
			AppliedAt:    b.At,
		})
		if err != nil {
			return nil, fmt.Errorf("encode applied operation: %w", err)
		}
		applied = string(raw)
	}
	if b.Forced {
		raw, err := json.Marshal(overrideRecord{
			ID:           uuid.New(),
			TokenCode:    string(b.TokenCode),
			RegistrantID: string(b.RegistrantID),
			TerminalID:   string(b.TerminalID),
			ActorID:      b.ActorID,
			Issues:       append([]string{}, b.OverrideIssues...),
			Reason:       b.Reason,
			CreatedAt:    b.At,
		})
		if err != nil {
			return nil, fmt.Errorf("encode override: %w", err)
		}
		override = string(raw)
	}

	keys := []string{tokenKey(b.TokenCode), registrantKey(b.RegistrantID), appliedKey(b.OpID), overridesKey(b.TokenCode)}
	res, err := bindScript.Run(ctx, s.client, keys,
		string(b.TokenCode), string(b.RegistrantID), at, string(b.TerminalID), applied, override,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("bind script: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("bind script: empty reply")
	}
	code, _ := res[0].(int64)
	switch code {
	case bindOK:
	case bindTokenMissing:
		return nil, fmt.Errorf("token %s: %w", b.TokenCode, sentinel.ErrNotFound)
	case bindRegistrantMissing:
		return nil, fmt.Errorf("registrant %s: %w", b.RegistrantID, sentinel.ErrNotFound)
	case bindTokenNotAvailable:
		return nil, fmt.Errorf("token %s: %w", b.TokenCode, models.ErrTokenNotAvailable)
	case bindRegistrantHasToken:
		return nil, fmt.Errorf("registrant %s: %w", b.RegistrantID, models.ErrRegistrantHasToken)
	default:
		return nil, fmt.Errorf("bind script: unexpected result %d", code)
	}
	if len(res) < 3 {
		return nil, fmt.Errorf("bind script: short reply")
	}
	tokenRaw, _ := res[1].(string)
	regRaw, _ := res[2].(string)
	token, err := decodeToken([]byte(tokenRaw))
	if err != nil {
		return nil, err
	}
	registrant, err := decodeRegistrant([]byte(regRaw))
	if err != nil {
		return nil, err
	}
	return &models.BindResult{Token: token, Registrant: registrant}, nil
}

func (s *RedisStore) UnbindIfBound(ctx context.Context, code id.TokenCode, at time.Time) (*models.UnbindResult, error) {
	var result *models.UnbindResult
	err := s.watchToken(ctx, code, func(tx *redis.Tx, token *models.Token) error {
		if token.Status != models.TokenStatusBound {
			return fmt.Errorf("token %s is %s: %w", code, token.Status, models.ErrTokenNotBound)
		}
		registrantID := token.BoundRegistrantID
		registrant, err := s.FindRegistrant(ctx, registrantID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		token.Status = models.TokenStatusAvailable
		token.BoundRegistrantID = ""
		token.UnboundAt = &at
		token.Version++
		token.UpdatedAt = at
		tokenRaw, err := json.Marshal(fromToken(token))
		if err != nil {
			return err
		}

		var regRaw []byte
		if registrant != nil && registrant.BoundTokenCode == code {
			registrant.CheckedIn = false
			registrant.CheckedInAt = nil
			registrant.CheckedInByTerminal = ""
			registrant.BoundTokenCode = ""
			registrant.Version++
			registrant.UpdatedAt = at
			if regRaw, err = json.Marshal(fromRegistrant(registrant)); err != nil {
				return err
			}
		} else {
			registrant = nil
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, tokenKey(code), tokenRaw, 0)
			if regRaw != nil {
				p.Set(ctx, registrantKey(registrantID), regRaw, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = &models.UnbindResult{Token: token, Registrant: registrant, HolderID: registrantID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RedisStore) MarkDamagedIfAvailable(ctx context.Context, code id.TokenCode, at time.Time) (*models.Token, error) {
	var result *models.Token
	err := s.watchToken(ctx, code, func(tx *redis.Tx, token *models.Token) error {
		if !token.IsAvailable() {
			return fmt.Errorf("token %s is %s: %w", code, token.Status, models.ErrTokenNotAvailable)
		}
		token.Status = models.TokenStatusDamaged
		token.Version++
		token.UpdatedAt = at
		raw, err := json.Marshal(fromToken(token))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, tokenKey(code), raw, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// watchToken runs fn under WATCH on the token key and retries when another
// writer commits first.
func (s *RedisStore) watchToken(ctx context.Context, code id.TokenCode, fn func(tx *redis.Tx, token *models.Token) error) error {
	key := tokenKey(code)
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			token, err := readToken(ctx, tx, code)
			if err != nil {
				return err
			}
			return fn(tx, token)
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("token %s: too much contention: %w", code, sentinel.ErrUnavailable)
}

func (s *RedisStore) FindAppliedOperation(ctx context.Context, opID id.OperationID) (*models.AppliedOperation, error) {
	raw, err := s.client.Get(ctx, appliedKey(opID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("operation %s: %w", opID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var rec appliedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode applied operation: %w", err)
	}
	return rec.toModel(), nil
}

func (s *RedisStore) ListOverrides(ctx context.Context, code id.TokenCode) ([]*models.OverrideRecord, error) {
	values, err := s.client.LRange(ctx, overridesKey(code), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.OverrideRecord, 0, len(values))
	for _, v := range values {
		var rec overrideRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("decode override: %w", err)
		}
		out = append(out, rec.toModel())
	}
	return out, nil
}

func readToken(ctx context.Context, c redis.Cmdable, code id.TokenCode) (*models.Token, error) {
	raw, err := c.Get(ctx, tokenKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("token %s: %w", code, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeToken(raw)
}

func decodeToken(raw []byte) (*models.Token, error) {
	var rec tokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return rec.toModel(), nil
}

func decodeRegistrant(raw []byte) (*models.Registrant, error) {
	var rec registrantRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode registrant: %w", err)
	}
	return rec.toModel(), nil
}
