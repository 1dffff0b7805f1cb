// Package policy provides a file-backed chain evaluator for local development.
package policy

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/internal/domain/service"
)

var _ service.ChainEvaluator = (*StaticEvaluator)(nil)

// StaticEvaluator answers policy evaluations from a YAML allowlist instead of a full node.
// StaticEvaluator 使用 YAML 白名单代替全节点来回答策略评估。
type StaticEvaluator struct {
	// scope -> user -> allowed ids; a nil id set allows every id in the scope.
	grants map[models.ObjectID]map[models.ObjectID]map[models.ObjectID]struct{}
}

// AllowlistFile is the on-disk format:
//
//	packages:
//	  - package: "0x..."
//	    grants:
//	      - user: "0x..."
//	        ids: ["0x...", "0x..."]
type AllowlistFile struct {
	Packages []PackageGrants `yaml:"packages"`
}

// PackageGrants lists the users entitled under one policy scope.
type PackageGrants struct {
	Package models.ObjectID `yaml:"package"`
	Grants  []UserGrant     `yaml:"grants"`
}

// UserGrant entitles one user to the listed ids, or to every id when IDs is empty.
type UserGrant struct {
	User models.ObjectID   `yaml:"user"`
	IDs  []models.ObjectID `yaml:"ids"`
}

// LoadStaticEvaluator reads an allowlist file.
func LoadStaticEvaluator(path string) (*StaticEvaluator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var file AllowlistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy file: %w", err)
	}
	return NewStaticEvaluator(file), nil
}

// NewStaticEvaluator indexes an allowlist.
func NewStaticEvaluator(file AllowlistFile) *StaticEvaluator {
	e := &StaticEvaluator{grants: make(map[models.ObjectID]map[models.ObjectID]map[models.ObjectID]struct{})}
	for _, pkg := range file.Packages {
		users, ok := e.grants[pkg.Package]
		if !ok {
			users = make(map[models.ObjectID]map[models.ObjectID]struct{})
			e.grants[pkg.Package] = users
		}
		for _, g := range pkg.Grants {
			if len(g.IDs) == 0 {
				users[g.User] = nil
				continue
			}
			ids, exists := users[g.User]
			if exists && ids == nil {
				continue
			}
			if ids == nil {
				ids = make(map[models.ObjectID]struct{}, len(g.IDs))
				users[g.User] = ids
			}
			for _, id := range g.IDs {
				ids[id] = struct{}{}
			}
		}
	}
	return e
}

// Evaluate implements service.ChainEvaluator.
func (e *StaticEvaluator) Evaluate(ctx context.Context, sender models.ObjectID, call *models.ValidatedPolicyCall) (*models.ExecutionOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users, ok := e.grants[call.PolicyScope]
	if !ok {
		return &models.ExecutionOutcome{Reason: "package not in allowlist"}, nil
	}
	ids, ok := users[sender]
	if !ok {
		return &models.ExecutionOutcome{Reason: "sender not in allowlist"}, nil
	}
	if ids == nil {
		return &models.ExecutionOutcome{Success: true}, nil
	}
	for _, id := range call.PolicyIDs {
		if _, ok := ids[id]; !ok {
			return &models.ExecutionOutcome{Reason: "id " + id.String() + " not granted"}, nil
		}
	}
	return &models.ExecutionOutcome{Success: true}, nil
}
