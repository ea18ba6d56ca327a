package www

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"wmscore/logging"
	"wmscore/store"
)

const sessionName = "wmscore-session"

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "wmscore-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // plain HTTP on the warehouse LAN
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// identity is the authenticated caller, resolved per request.
type identity struct {
	UserID   int64
	Username string
	Perms    map[string]bool
}

type identityKey struct{}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

// requireIdentity loads the session user and their current permissions.
// Permissions are re-read on every request so role changes apply at once.
func (h *Handlers) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.sessions.Get(r, sessionName)
		if err != nil {
			h.jsonError(w, "authentication required", "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID, ok := session.Values["user_id"].(int64)
		if !ok || userID == 0 {
			h.jsonError(w, "authentication required", "Unauthorized", http.StatusUnauthorized)
			return
		}
		username, _ := session.Values["username"].(string)
		codes, err := h.engine.DB().UserPermissions(r.Context(), userID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		id := identity{UserID: userID, Username: username, Perms: make(map[string]bool, len(codes))}
		for _, c := range codes {
			id.Perms[c] = true
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func (h *Handlers) ensureDefaultAdmin(ctx context.Context) error {
	hash, err := hashPassword("admin")
	if err != nil {
		return err
	}
	return h.engine.DB().EnsureAdmin(ctx, hash)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.engine.DB().GetUserByName(r.Context(), req.Username)
	if err != nil || !user.Active || !checkPassword(user.PasswordHash, req.Password) {
		logging.Warn(r.Context()).Str("username", req.Username).Msg("auth: login failed")
		h.jsonError(w, "invalid username or password", "Unauthorized", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Values["username"] = user.Username
	session.Values["sid"] = uuid.NewString()
	if err := session.Save(r, w); err != nil {
		logging.Error(r.Context()).Err(err).Msg("auth: session save error")
		h.jsonError(w, "internal error", "Internal", http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"id": user.ID, "username": user.Username})
}

func (h *Handlers) apiLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	delete(session.Values, "user_id")
	delete(session.Values, "username")
	delete(session.Values, "sid")
	session.Options.MaxAge = -1
	session.Save(r, w)
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiMe(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	user, err := h.engine.DB().GetUser(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	perms := make([]string, 0, len(id.Perms))
	for _, code := range store.PermissionCodes() {
		if id.Perms[code] {
			perms = append(perms, code)
		}
	}
	h.jsonOK(w, map[string]any{"id": user.ID, "username": user.Username, "role_id": user.RoleID, "permissions": perms})
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	RoleID   *int64 `json:"role_id"`
}

func (h *Handlers) apiCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeError(w, r, store.Errorf(store.KindInvalid, "username and password are required"))
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u := &store.User{Username: req.Username, PasswordHash: hash, RoleID: req.RoleID}
	if err := h.engine.DB().CreateUser(r.Context(), u); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, u)
}

func (h *Handlers) apiListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.engine.DB().ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, users)
}

func (h *Handlers) apiCreateRole(w http.ResponseWriter, r *http.Request) {
	var role store.Role
	if err := decode(r, &role); err != nil {
		h.writeError(w, r, err)
		return
	}
	if role.Name == "" {
		h.writeError(w, r, store.Errorf(store.KindInvalid, "role name is required"))
		return
	}
	if err := h.engine.DB().CreateRole(r.Context(), &role); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, role)
}

func (h *Handlers) apiListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.engine.DB().ListRoles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, roles)
}

func (h *Handlers) apiListPermissions(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, store.PermissionCatalog)
}
