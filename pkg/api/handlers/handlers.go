package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/cbodonnell/worldgate/pkg/crypt"
	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/repositories"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/gorilla/mux"
)

const (
	MinPasswordLength = 6
	MaxNameLength     = 16
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// StatusProvider reports the state of the running world.
type StatusProvider interface {
	Status(ctx context.Context) (messages.Status, error)
}

func validName(name string) bool {
	return len(name) >= 1 && len(name) <= MaxNameLength && nameRegex.MatchString(name)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

func HandleCreateAccount(repository repositories.Repository, params crypt.PasswordParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.FormValue("name")
		password := r.FormValue("password")

		if !validName(name) {
			http.Error(w, "Name must be 1 to 16 letters or digits", http.StatusBadRequest)
			return
		}
		if len(password) < MinPasswordLength {
			http.Error(w, "Password must be at least 6 characters", http.StatusBadRequest)
			return
		}

		hash, err := crypt.HashPassword([]byte(password), params)
		if err != nil {
			log.Error("failed to hash password: %v", err)
			http.Error(w, "Failed to create account", http.StatusInternalServerError)
			return
		}

		account, err := repository.CreateAccount(r.Context(), name, hash)
		if err != nil {
			if repositories.IsConflict(err) {
				http.Error(w, "Name already exists", http.StatusConflict)
				return
			}
			log.Error("failed to create account: %v", err)
			http.Error(w, "Failed to create account", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, account)
	}
}

// HandleLogin checks the account password and issues a single use login
// ticket for C_LOGIN_ARBITER.
func HandleLogin(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.FormValue("name")
		password := r.FormValue("password")
		if name == "" || password == "" {
			http.Error(w, "Missing name or password", http.StatusBadRequest)
			return
		}

		account, err := repository.GetAccountByName(r.Context(), name)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Invalid name or password", http.StatusUnauthorized)
				return
			}
			log.Error("failed to get account: %v", err)
			http.Error(w, "Failed to log in", http.StatusInternalServerError)
			return
		}

		ok, err := crypt.VerifyPassword([]byte(password), account.PasswordHash)
		if err != nil {
			log.Error("failed to verify password for account %d: %v", account.ID, err)
			http.Error(w, "Failed to log in", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "Invalid name or password", http.StatusUnauthorized)
			return
		}

		ticket, err := repository.CreateLoginTicket(r.Context(), account.ID)
		if err != nil {
			log.Error("failed to create login ticket: %v", err)
			http.Error(w, "Failed to log in", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, ticket)
	}
}

// HandleCreateUser creates a character for an account. New characters start
// at the spawn point of the default zone.
func HandleCreateUser(repository repositories.Repository, tables *staticdata.Tables, defaultZoneID int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := strconv.ParseInt(mux.Vars(r)["accountID"], 10, 64)
		if err != nil {
			http.Error(w, "Failed to parse accountID", http.StatusBadRequest)
			return
		}

		name := r.FormValue("name")
		if !validName(name) {
			http.Error(w, "Name must be 1 to 16 letters or digits", http.StatusBadRequest)
			return
		}

		var attrs [3]int32
		for i, key := range []string{"race", "gender", "class"} {
			v := r.FormValue(key)
			if v == "" {
				continue
			}
			n, err := strconv.ParseInt(v, 10, 32)
			if err != nil || n < 0 {
				http.Error(w, "Invalid "+key, http.StatusBadRequest)
				return
			}
			attrs[i] = int32(n)
		}

		zone, ok := tables.Zone(defaultZoneID)
		if !ok {
			log.Error("default zone %d is not in the zone table", defaultZoneID)
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}

		user, err := repository.CreateUser(r.Context(), &models.User{
			AccountID: accountID,
			Name:      name,
			Race:      attrs[0],
			Gender:    attrs[1],
			Class:     attrs[2],
			Level:     1,
			Alive:     true,
			Location: models.Location{
				ZoneID:   zone.ID,
				X:        zone.Spawn.X,
				Y:        zone.Spawn.Y,
				Z:        zone.Spawn.Z,
				Rotation: zone.Spawn.Rotation,
			},
		})
		if err != nil {
			if repositories.IsConflict(err) {
				http.Error(w, "Name already exists", http.StatusConflict)
				return
			}
			log.Error("failed to create user: %v", err)
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

func HandleListUsers(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := strconv.ParseInt(mux.Vars(r)["accountID"], 10, 64)
		if err != nil {
			http.Error(w, "Failed to parse accountID", http.StatusBadRequest)
			return
		}

		users, err := repository.ListUsers(r.Context(), accountID)
		if err != nil {
			log.Error("failed to list users: %v", err)
			http.Error(w, "Failed to list users", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, users)
	}
}

func HandleStatus(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := provider.Status(r.Context())
		if err != nil {
			log.Error("failed to get world status: %v", err)
			http.Error(w, "Failed to get status", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
