package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type userRow struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=student teacher admin"`
	Password string `json:"password,omitempty"`
}

// POST /users/bulk
// Accepts a JSON array of users; rows with an existing username are updated
// in place. Passwords are stored as bcrypt hashes.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []userRow
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, "expected JSON array", http.StatusBadRequest)
			return
		}
		for i, row := range rows {
			if err := validate.Struct(row); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if row.ID == "" {
				rows[i].ID = uuid.NewString()
			}
		}

		upserted := 0
		for _, row := range rows {
			hash := ""
			if row.Password != "" {
				b, err := bcrypt.GenerateFromPassword([]byte(row.Password), 12)
				if err != nil {
					http.Error(w, "hash password", http.StatusInternalServerError)
					return
				}
				hash = string(b)
			}
			_, err := db.ExecContext(r.Context(), `INSERT INTO users (id,username,role,pass_hash,created_at)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (username) DO UPDATE SET role=EXCLUDED.role,
					pass_hash=CASE WHEN EXCLUDED.pass_hash='' THEN users.pass_hash ELSE EXCLUDED.pass_hash END`,
				row.ID, row.Username, row.Role, hash, time.Now().Unix())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			upserted++
		}
		writeJSON(w, map[string]int{"upserted": upserted})
	}
}
