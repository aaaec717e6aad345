package service

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkamocks "github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/kafka/mocks"
	redismocks "github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/redis/mocks"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	repositorymocks "github.com/Mattiaborrelli4/swapunina-sub000/internal/repository/mocks"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userRepo := repositorymocks.NewMockUserRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)
	// The registration event is sent from a goroutine with retries.
	kafkaProducer.EXPECT().Send(gomock.Any(), "settlements", gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	ctx := context.Background()
	service := NewUserService(userRepo, redisClient, kafkaProducer, "secret")

	t.Run("successful registration", func(t *testing.T) {
		userRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(nil, pkgerrors.ErrUserNotFound)
		userRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, user *models.User) error {
				assert.Equal(t, "alice", user.Username)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("testpass")))
				user.ID = 1
				return nil
			})

		userID, err := service.Register(ctx, "alice", "testpass")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), userID)
	})

	t.Run("empty credentials", func(t *testing.T) {
		userID, err := service.Register(ctx, "", "testpass")
		assert.Equal(t, int64(0), userID)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidParameters)
	})

	t.Run("username already taken", func(t *testing.T) {
		existing := &models.User{ID: 2, Username: "alice"}
		userRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(existing, nil)

		userID, err := service.Register(ctx, "alice", "testpass")
		assert.Equal(t, int64(0), userID)
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
	})

	t.Run("lost race on unique index", func(t *testing.T) {
		userRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(nil, pkgerrors.ErrUserNotFound)
		userRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(pkgerrors.ErrUsernameExists)

		userID, err := service.Register(ctx, "alice", "testpass")
		assert.Equal(t, int64(0), userID)
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
	})

	t.Run("database error", func(t *testing.T) {
		userRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(nil, errors.New("database error"))

		userID, err := service.Register(ctx, "alice", "testpass")
		assert.Equal(t, int64(0), userID)
		assert.ErrorIs(t, err, pkgerrors.ErrInternal)
	})
}

func TestUserService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userRepo := repositorymocks.NewMockUserRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	service := NewUserService(userRepo, redisClient, kafkaProducer, "secret")

	t.Run("successful login", func(t *testing.T) {
		password := "testpass"
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		user := &models.User{ID: 1, Username: "alice", PasswordHash: string(hashedPassword)}

		userRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(user, nil)
		redisClient.EXPECT().Set(gomock.Any(), "user:1:token", gomock.Any(), time.Hour).Return(nil)

		token, err := service.Login(ctx, "alice", password)
		assert.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("unknown user", func(t *testing.T) {
		userRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(nil, pkgerrors.ErrUserNotFound)

		token, err := service.Login(ctx, "alice", "testpass")
		assert.Empty(t, token)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.DefaultCost)
		user := &models.User{ID: 1, Username: "alice", PasswordHash: string(hashedPassword)}

		userRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(user, nil)

		token, err := service.Login(ctx, "alice", "wrongpass")
		assert.Empty(t, token)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
	})
}
