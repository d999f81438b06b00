package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type userRepository struct {
	session
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{session: session{db: db}}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	var err error
	repo.read(func(t *tables) {
		err = checkUniqueness(t.users, username, email, excludedUsers)
	})
	return err
}

func checkUniqueness(users []user.User, username, email string, excludedUsers []user.User) error {
	for _, usr := range users {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	var err error
	repo.write(func(t *tables) {
		if checkUniqueness(t.users, usr.Username, usr.Email, nil) != nil {
			err = user.ErrUserExists
			return
		}
		usr.ID = uuid.New().String()
		t.users = append(t.users, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var users []user.User
	repo.read(func(t *tables) {
		users = make([]user.User, 0, len(t.users))
		for _, usr := range t.users {
			if matchUser(usr, filter) {
				users = append(users, usr)
			}
		}
	})

	if len(ordering) > 0 {
		sort.SliceStable(users, func(i, j int) bool {
			for _, ord := range ordering {
				a, b := userSortKey(users[i], ord.Field), userSortKey(users[j], ord.Field)
				if a == b {
					continue
				}
				if ord.Ascending {
					return a < b
				}
				return a > b
			}
			return false
		})
	}
	return users, nil
}

func userSortKey(usr user.User, field string) string {
	switch field {
	case "name":
		return strings.ToLower(usr.Name)
	case "username":
		return usr.Username
	case "email":
		return usr.Email
	case "created_at":
		return usr.CreatedAt.Format("2006-01-02T15:04:05.000000000")
	case "last_login":
		return usr.LastLogin.Format("2006-01-02T15:04:05.000000000")
	}
	return ""
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsFold(filter.Search, usr.Name, usr.Username, usr.Email) {
		return false
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

// containsFold reports whether any of values contains search, case-insensitively.
func containsFold(search string, values ...string) bool {
	search = strings.ToLower(search)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), search) {
			return true
		}
	}
	return false
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		found user.User
		ok    bool
	)
	repo.read(func(t *tables) {
		for _, usr := range t.users {
			switch {
			case filter.ID != "":
				ok = usr.ID == filter.ID
			case filter.Username != "":
				ok = usr.Username == filter.Username
			case filter.Email != "":
				ok = usr.Email == filter.Email
			case filter.UsernameOrEmail != "":
				ok = usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail
			}
			if ok {
				found = usr
				return
			}
		}
	})
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return found, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	var err error
	repo.write(func(t *tables) {
		for i := range t.users {
			if t.users[i].ID == usr.ID {
				if checkUniqueness(t.users, usr.Username, usr.Email, []user.User{usr}) != nil {
					err = user.ErrUserExists
					return
				}
				t.users[i] = usr
				return
			}
		}
		err = user.ErrNotFound
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	var deleted int
	repo.write(func(t *tables) {
		users := t.users[:0]
		for _, usr := range t.users {
			if contains(ids, usr.ID) {
				deleted++
				continue
			}
			users = append(users, usr)
		}
		t.users = users

		// students are deleted along with their account
		students := t.students[:0]
		for _, stu := range t.students {
			if !contains(ids, stu.ID) {
				students = append(students, stu)
			}
		}
		t.students = students

		scores := t.scores[:0]
		for _, sc := range t.scores {
			if !contains(ids, sc.StudentID) {
				scores = append(scores, sc)
			}
		}
		t.scores = scores

		assignments := t.assignments[:0]
		for _, ta := range t.assignments {
			if !contains(ids, ta.TeacherID) {
				assignments = append(assignments, ta)
			}
		}
		t.assignments = assignments

		for i := range t.history {
			if contains(ids, t.history[i].AdminID) {
				t.history[i].AdminID = ""
			}
		}
	})
	return deleted, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
