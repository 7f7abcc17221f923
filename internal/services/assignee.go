package services

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/db"
	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/importer"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

// assigneeRoles are the roles an imported name may resolve to.
var assigneeRoles = []types.Role{types.RoleAssignee, types.RoleSuperAdmin}

const maxAssigneeCreateAttempts = 3

type AssigneeConfig struct {
	DefaultPassword string
	EmailDomain     string
	BcryptCost      int
}

// AssigneeResolution maps name keys to the users they resolved to.
type AssigneeResolution struct {
	ByKey   map[string]uuid.UUID
	Created int
}

// Lookup returns the user id for a display name, or nil.
func (r *AssigneeResolution) Lookup(name *string) *uuid.UUID {
	if r == nil || name == nil {
		return nil
	}
	id, ok := r.ByKey[types.NameKey(*name)]
	if !ok {
		return nil
	}
	return &id
}

type AssigneeResolver interface {
	// ResolveBatch finds or creates one user per distinct name. Must run
	// inside the caller's transaction.
	ResolveBatch(dbc dbctx.Context, names []string, actorID *uuid.UUID) (*AssigneeResolution, error)
}

type assigneeResolver struct {
	log      *logger.Logger
	userRepo repos.UserRepo
	cfg      AssigneeConfig
}

func NewAssigneeResolver(log *logger.Logger, userRepo repos.UserRepo, cfg AssigneeConfig) AssigneeResolver {
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "assignee.local"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &assigneeResolver{
		log:      log.With("service", "AssigneeResolver"),
		userRepo: userRepo,
		cfg:      cfg,
	}
}

func (s *assigneeResolver) ResolveBatch(dbc dbctx.Context, names []string, actorID *uuid.UUID) (*AssigneeResolution, error) {
	if dbc.Tx == nil {
		return nil, fmt.Errorf("assignee resolution requires a transaction")
	}
	out := &AssigneeResolution{ByKey: map[string]uuid.UUID{}}

	display := make(map[string]string, len(names))
	keys := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Join(strings.Fields(n), " ")
		key := types.NameKey(n)
		if key == "" {
			continue
		}
		if _, seen := display[key]; seen {
			continue
		}
		display[key] = n
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return out, nil
	}

	existing, err := s.userRepo.GetByNameKeys(dbc, keys, assigneeRoles)
	if err != nil {
		return nil, fmt.Errorf("lookup assignees: %w", err)
	}
	for _, u := range existing {
		if _, ok := out.ByKey[u.NameKey]; !ok {
			out.ByKey[u.NameKey] = u.ID
		}
	}

	var hash string
	for _, key := range keys {
		if _, ok := out.ByKey[key]; ok {
			continue
		}
		if hash == "" {
			raw, err := bcrypt.GenerateFromPassword([]byte(s.cfg.DefaultPassword), s.cfg.BcryptCost)
			if err != nil {
				return nil, fmt.Errorf("hash default assignee password: %w", err)
			}
			hash = string(raw)
		}
		u, created, err := s.createOrReload(dbc, display[key], key, hash, actorID)
		if err != nil {
			return nil, err
		}
		out.ByKey[key] = u.ID
		if created {
			out.Created++
		}
	}
	return out, nil
}

// createOrReload inserts the assignee inside a savepoint. When a concurrent
// import wins the name, its user is returned instead.
func (s *assigneeResolver) createOrReload(dbc dbctx.Context, name, key, hash string, actorID *uuid.UUID) (*types.User, bool, error) {
	for attempt := 0; attempt < maxAssigneeCreateAttempts; attempt++ {
		email, err := s.freeEmail(dbc, name)
		if err != nil {
			return nil, false, err
		}
		u := &types.User{
			FullName:     name,
			Email:        email,
			Password:     hash,
			Role:         types.RoleAssignee,
			ReceiveAlert: true,
			IsActive:     true,
			CreatedBy:    actorID,
		}
		err = dbc.Tx.Transaction(func(sp *gorm.DB) error {
			_, err := s.userRepo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: sp}, []*types.User{u})
			return err
		})
		if err == nil {
			s.log.Info("Created assignee from import", "assignee_id", u.ID, "name", name)
			return u, true, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, false, fmt.Errorf("create assignee %q: %w", name, err)
		}

		found, lerr := s.userRepo.GetByNameKeys(dbc, []string{key}, assigneeRoles)
		if lerr != nil {
			return nil, false, fmt.Errorf("reload assignee %q: %w", name, lerr)
		}
		if len(found) > 0 {
			s.log.Warn("Assignee created concurrently; reusing", "name", name, "error", importer.ErrAssigneeCreationRace)
			return found[0], false, nil
		}
		// The collision was on the generated email; pick another.
	}
	return nil, false, fmt.Errorf("create assignee %q: %w", name, importer.ErrAssigneeCreationRace)
}

func (s *assigneeResolver) freeEmail(dbc dbctx.Context, name string) (string, error) {
	base := slugName(name)
	for suffix := 1; ; suffix++ {
		local := base
		if suffix > 1 {
			local = base + strconv.Itoa(suffix)
		}
		email := local + "@" + s.cfg.EmailDomain
		taken, err := s.userRepo.EmailExists(dbc, email)
		if err != nil {
			return "", fmt.Errorf("check assignee email: %w", err)
		}
		if !taken {
			return email, nil
		}
	}
}

func slugName(name string) string {
	var b strings.Builder
	dot := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dot = false
			continue
		}
		if b.Len() > 0 && !dot {
			b.WriteByte('.')
			dot = true
		}
	}
	s := strings.TrimSuffix(b.String(), ".")
	if len(s) > 40 {
		s = strings.TrimSuffix(s[:40], ".")
	}
	if s == "" {
		return "assignee"
	}
	return s
}
