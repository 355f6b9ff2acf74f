package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/middleware"
)

// loginRequest accepts the identifier under any of its historical names
type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (r loginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Username, r.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type loginResponse struct {
	Message string `json:"message"`
	*auth.LoginResult
}

// login handles POST /login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body.")
		return
	}

	result, err := s.auth.Login(r.Context(), auth.LoginRequest{
		Identifier: req.identifier(),
		Password:   req.Password,
		ClientIP:   httputil.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Message:     "Login successfully",
		LoginResult: result,
	})
}

// logout handles POST /logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.ExtractBearer(r.Header.Get("Authorization"))
	if !ok {
		httputil.WriteAppError(w, apperr.Validation("api.logout", auth.MsgTokenNotInformed))
		return
	}

	if err := s.auth.Logout(r.Context(), token); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Logout successfully.")
}

// me handles GET /auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	httputil.WriteJSON(w, http.StatusOK, authCtx.User.Projection())
}
