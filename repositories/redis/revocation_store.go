package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arjun-computer-geek/saas-demo/models"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	disabledOrgsKey = "orgs:disabled"
	defaultEpochTTL = 24 * time.Hour
)

// consumeScript reads and deletes a session record and drops it from the org
// index in one step. Returns nil when the record is gone.
const consumeScript = `
local v = redis.call("GET", KEYS[1])
if not v then
  return false
end
redis.call("DEL", KEYS[1])
if KEYS[2] then
  redis.call("SREM", KEYS[2], KEYS[1])
end
return v
`

// purgeScript deletes the given members of an org index (KEYS[2..]) and
// drops them from the index (KEYS[1]). The index goes once it is empty.
const purgeScript = `
local removed = 0
for i = 2, #KEYS do
  removed = removed + redis.call("DEL", KEYS[i])
  redis.call("SREM", KEYS[1], KEYS[i])
end
if redis.call("SCARD", KEYS[1]) == 0 then
  redis.call("DEL", KEYS[1])
end
return removed
`

// publishEpochScript only ever moves the cached epoch forward.
const publishEpochScript = `
local current = tonumber(redis.call("GET", KEYS[1]))
local incoming = tonumber(ARGV[1])
if current and current > incoming then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return current
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return incoming
`

var (
	consumeLua      = goredis.NewScript(consumeScript)
	purgeLua        = goredis.NewScript(purgeScript)
	publishEpochLua = goredis.NewScript(publishEpochScript)
)

// RevocationStore implements repositories.RevocationStore on Redis.
//
// Layout:
//
//	refresh:{org:<orgID>}:<digest>  JSON SessionRecord, TTL = refresh TTL
//	refresh:<digest>                same, for org-less super-admin sessions
//	session:<digest>                JSON SessionRecord, TTL = access TTL
//	org-sessions:{org:<orgID>}      SET of the org's refresh keys
//	org-epoch:<orgID>               cached auth epoch
//	orgs:disabled                   SET of disabled org ids
//
// Refresh keys share their org index's hash tag, so every multi-key script
// and transaction stays within one Redis Cluster slot. Access sessions are
// never indexed: an org purge leaves them in place so the auth middleware
// can answer them with org_access_revoked and delete them itself.
type RevocationStore struct {
	client   goredis.UniversalClient
	indexTTL time.Duration
	epochTTL time.Duration
	logger   *zap.Logger
}

// NewRevocationStore creates a store. indexTTL must be at least the longest
// session TTL so an org index always outlives its members.
func NewRevocationStore(client goredis.UniversalClient, indexTTL time.Duration, logger *zap.Logger) *RevocationStore {
	return &RevocationStore{
		client:   client,
		indexTTL: indexTTL,
		epochTTL: defaultEpochTTL,
		logger:   logger,
	}
}

// maxPurgeRounds bounds PurgeOrg when sessions keep arriving mid-purge
const maxPurgeRounds = 8

func orgHashTag(orgID uuid.UUID) string {
	return "{org:" + orgID.String() + "}"
}

// indexed reports whether a record of kind is tracked in its org's index
func indexed(kind models.SessionKind, orgID *uuid.UUID) bool {
	return kind == models.SessionKindRefresh && orgID != nil
}

func sessionKey(kind models.SessionKind, id string, orgID *uuid.UUID) string {
	if indexed(kind, orgID) {
		return string(kind) + ":" + orgHashTag(*orgID) + ":" + id
	}
	return string(kind) + ":" + id
}

func orgIndexKey(orgID uuid.UUID) string {
	return "org-sessions:" + orgHashTag(orgID)
}

func orgEpochKey(orgID uuid.UUID) string {
	return "org-epoch:" + orgID.String()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", repositories.ErrStoreUnavailable, op, err)
}

// SaveSession stores rec and, for refresh sessions, indexes it under its org
// in one MULTI/EXEC.
func (s *RevocationStore) SaveSession(ctx context.Context, kind models.SessionKind, id string, rec *models.SessionRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	key := sessionKey(kind, id, rec.OrgID)
	indexTTL := s.indexTTL
	if ttl > indexTTL {
		indexTTL = ttl
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, data, ttl)
		if indexed(kind, rec.OrgID) {
			idx := orgIndexKey(*rec.OrgID)
			pipe.SAdd(ctx, idx, key)
			pipe.Expire(ctx, idx, indexTTL)
		}
		return nil
	})
	if err != nil {
		return unavailable("save session", err)
	}
	return nil
}

// GetSession reads a record without consuming it
func (s *RevocationStore) GetSession(ctx context.Context, kind models.SessionKind, id string, orgID *uuid.UUID) (*models.SessionRecord, error) {
	data, err := s.client.Get(ctx, sessionKey(kind, id, orgID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repositories.ErrNotFound
		}
		return nil, unavailable("get session", err)
	}
	return decodeRecord(data)
}

// ConsumeSession atomically reads and deletes a record
func (s *RevocationStore) ConsumeSession(ctx context.Context, kind models.SessionKind, id string, orgID *uuid.UUID) (*models.SessionRecord, error) {
	keys := []string{sessionKey(kind, id, orgID)}
	if indexed(kind, orgID) {
		keys = append(keys, orgIndexKey(*orgID))
	}

	data, err := consumeLua.Run(ctx, s.client, keys).Text()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repositories.ErrNotFound
		}
		return nil, unavailable("consume session", err)
	}
	return decodeRecord([]byte(data))
}

// DeleteSession removes a record and its index entry
func (s *RevocationStore) DeleteSession(ctx context.Context, kind models.SessionKind, id string, orgID *uuid.UUID) error {
	key := sessionKey(kind, id, orgID)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		if indexed(kind, orgID) {
			pipe.SRem(ctx, orgIndexKey(*orgID), key)
		}
		return nil
	})
	if err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

// PurgeOrg deletes every indexed session of an org and the index itself.
// Each round passes the members it read as script keys; sessions indexed
// between rounds are picked up by the next one.
func (s *RevocationStore) PurgeOrg(ctx context.Context, orgID uuid.UUID) (int, error) {
	idx := orgIndexKey(orgID)
	total := 0
	for round := 0; round < maxPurgeRounds; round++ {
		members, err := s.client.SMembers(ctx, idx).Result()
		if err != nil {
			return total, unavailable("read org index", err)
		}
		if len(members) == 0 {
			break
		}

		removed, err := purgeLua.Run(ctx, s.client, append([]string{idx}, members...)).Int()
		if err != nil {
			return total, unavailable("purge org sessions", err)
		}
		total += removed
	}
	s.logger.Debug("org sessions purged", zap.String("org_id", orgID.String()), zap.Int("removed", total))
	return total, nil
}

// SetOrgEpoch publishes the epoch of an org; an older value never replaces a newer one
func (s *RevocationStore) SetOrgEpoch(ctx context.Context, orgID uuid.UUID, epoch int64) error {
	err := publishEpochLua.Run(ctx, s.client, []string{orgEpochKey(orgID)}, epoch, s.epochTTL.Milliseconds()).Err()
	if err != nil {
		return unavailable("set org epoch", err)
	}
	return nil
}

// GetOrgEpoch returns the cached epoch
func (s *RevocationStore) GetOrgEpoch(ctx context.Context, orgID uuid.UUID) (int64, bool, error) {
	epoch, err := s.client.Get(ctx, orgEpochKey(orgID)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, unavailable("get org epoch", err)
	}
	return epoch, true, nil
}

// MarkOrgDisabled adds the org to the disabled set
func (s *RevocationStore) MarkOrgDisabled(ctx context.Context, orgID uuid.UUID) error {
	if err := s.client.SAdd(ctx, disabledOrgsKey, orgID.String()).Err(); err != nil {
		return unavailable("mark org disabled", err)
	}
	return nil
}

// MarkOrgEnabled removes the org from the disabled set
func (s *RevocationStore) MarkOrgEnabled(ctx context.Context, orgID uuid.UUID) error {
	if err := s.client.SRem(ctx, disabledOrgsKey, orgID.String()).Err(); err != nil {
		return unavailable("mark org enabled", err)
	}
	return nil
}

// IsOrgDisabled reports disabled-set membership
func (s *RevocationStore) IsOrgDisabled(ctx context.Context, orgID uuid.UUID) (bool, error) {
	disabled, err := s.client.SIsMember(ctx, disabledOrgsKey, orgID.String()).Result()
	if err != nil {
		return false, unavailable("check org disabled", err)
	}
	return disabled, nil
}

// Ping checks connectivity
func (s *RevocationStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func decodeRecord(data []byte) (*models.SessionRecord, error) {
	rec := &models.SessionRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	if rec.IsExpired(time.Now()) {
		return nil, repositories.ErrNotFound
	}
	return rec, nil
}

var _ repositories.RevocationStore = (*RevocationStore)(nil)
