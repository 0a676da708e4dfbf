package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/introhub/pkg/errors"
)

var (
	errUserNotFound           = apperrors.NewNotFound("User not found")
	errRequestNotFound        = apperrors.NewNotFound("Connection request not found")
	errLinkInvalid            = apperrors.NewNotFound("This link is invalid or has expired")
	errReferralNotFound       = apperrors.NewNotFound("Referral not found")
	errIntroductionNotFound   = apperrors.NewNotFound("Introduction not found")
	errAlreadyResponded       = apperrors.NewConflict("This request has already been responded to")
	errReferralResponded      = apperrors.NewConflict("This referral has already been responded to")
	errIntroductionFinalised  = apperrors.NewConflict("This introduction has already been completed")
	errIntroductionConcurrent = apperrors.NewConflict("This introduction was updated by someone else, please retry")
	errDuplicatePending       = apperrors.NewConflict("You already have a pending request to this user")

	errPendingKeyTaken = errors.New("pending request key taken")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
