package services

import (
	"chathub/domain"
	"chathub/repositories"
)

type IUserService interface {
	Current(userID domain.UserID) (domain.User, error)
	GetAll() ([]domain.User, error)
}

type UserService struct {
	users repositories.IUserRepository
}

func NewUserService(users repositories.IUserRepository) IUserService {
	return &UserService{users: users}
}

func (s *UserService) Current(userID domain.UserID) (domain.User, error) {
	return s.users.GetByID(userID)
}

func (s *UserService) GetAll() ([]domain.User, error) {
	return s.users.GetAll()
}
