package repofake

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-users-service/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory users.Repo for tests.
type FakeUserRepo struct {
	lock   sync.RWMutex
	nextID int64
	users  map[int64]users.User
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		nextID: 1,
		users:  make(map[int64]users.User),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) (*users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	created := *user
	created.ID = ur.nextID
	ur.nextID++
	ur.users[created.ID] = created
	return &created, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id int64) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &user, nil
}

func (ur *FakeUserRepo) All(_ context.Context) ([]users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	list := make([]users.User, 0, len(ur.users))
	for _, u := range ur.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (ur *FakeUserRepo) FindByCredentials(_ context.Context, name, password string) ([]users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	matched := make([]users.User, 0)
	for _, u := range ur.users {
		if u.Name == name && users.CheckPasswordHash(password, u.PasswordHash) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (ur *FakeUserRepo) Admins(_ context.Context) ([]users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	admins := make([]users.User, 0)
	for _, u := range ur.users {
		if u.IsAdmin {
			admins = append(admins, u)
		}
	}
	return admins, nil
}

func (ur *FakeUserRepo) Update(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[user.ID]; !ok {
		return users.ErrNotFound
	}
	ur.users[user.ID] = *user
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id int64) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[id]; !ok {
		return users.ErrNotFound
	}
	delete(ur.users, id)
	return nil
}
