package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/dukerupert/taskcal/internal/model"
)

func TestUserList(t *testing.T) {
	e := setupHandlerTest(t)
	rec := serve(e.userH.List, request("GET", "/api/users", nil, e.bob))
	expectStatus(t, rec, http.StatusOK)
	users := decode[[]model.User](t, rec)
	if len(users) != 2 || users[0].FirstName != "Ana" || users[1].FirstName != "Bob" {
		t.Errorf("users = %+v", users)
	}
}

func TestUserCreate(t *testing.T) {
	e := setupHandlerTest(t)

	body := map[string]any{"first_name": "  mary ann ", "password": "longenough"}
	rec := serve(e.userH.Create, request("POST", "/api/users", body, e.ana))
	expectStatus(t, rec, http.StatusCreated)
	if u := decode[model.User](t, rec); u.FirstName != "Mary Ann" || u.IsAdmin {
		t.Errorf("created = %+v", u)
	}

	rec = serve(e.userH.Create, request("POST", "/api/users", map[string]any{"first_name": "BOB", "password": "longenough"}, e.ana))
	expectStatus(t, rec, http.StatusConflict)

	rec = serve(e.userH.Create, request("POST", "/api/users", map[string]any{"first_name": "Cy", "password": "short"}, e.ana))
	expectStatus(t, rec, http.StatusBadRequest)

	rec = serve(e.userH.Create, request("POST", "/api/users", map[string]any{"first_name": " ", "password": "longenough"}, e.ana))
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestUserUpdatePassword(t *testing.T) {
	e := setupHandlerTest(t)
	id := strconv.FormatInt(e.bob.ID, 10)

	rec := serve(e.userH.UpdatePassword, request("PUT", "/", map[string]string{"password": "new password"}, e.ana, "id", id))
	expectStatus(t, rec, http.StatusNoContent)

	if u, err := e.users.Authenticate("Bob", "new password"); err != nil || u == nil {
		t.Errorf("new password rejected: %v", err)
	}
	if u, _ := e.users.Authenticate("Bob", "battery staple"); u != nil {
		t.Error("old password still accepted")
	}

	rec = serve(e.userH.UpdatePassword, request("PUT", "/", map[string]string{"password": "abc"}, e.ana, "id", id))
	expectStatus(t, rec, http.StatusBadRequest)

	rec = serve(e.userH.UpdatePassword, request("PUT", "/", map[string]string{"password": "long enough"}, e.ana, "id", "999"))
	expectStatus(t, rec, http.StatusNotFound)
}

func TestUserDelete(t *testing.T) {
	e := setupHandlerTest(t)

	rec := serve(e.userH.Delete, request("DELETE", "/", nil, e.ana, "id", strconv.FormatInt(e.ana.ID, 10)))
	expectStatus(t, rec, http.StatusBadRequest)

	rec = serve(e.userH.Delete, request("DELETE", "/", nil, e.ana, "id", strconv.FormatInt(e.bob.ID, 10)))
	expectStatus(t, rec, http.StatusNoContent)
	if u, _ := e.users.GetByID(e.bob.ID); u != nil {
		t.Error("bob still exists")
	}
}
