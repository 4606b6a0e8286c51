package auth

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrRecordNotFound は指定メールアドレスの認証情報が存在しないことを表す。
	ErrRecordNotFound = errors.New("auth: credential record not found")
	// ErrRecordExists は同じメールアドレスの認証情報が既に存在することを表す。
	ErrRecordExists = errors.New("auth: credential record already exists")
)

// CredentialRecord は永続化される認証情報。メールアドレスで一意になる。
type CredentialRecord struct {
	// SubjectID はユーザーの一意識別子。トークンのsubになる。
	SubjectID string
	// Email は正規化済みのメールアドレス。
	Email string
	// DisplayName は表示名。
	DisplayName string
	// PasswordHash はbcryptでハッシュ化したパスワード。
	PasswordHash string
}

// CredentialStore は認証情報の永続化層。Issuerだけが所有する。
type CredentialStore interface {
	// FindByEmail はメールアドレスで認証情報を検索する。
	// 見つからない場合はErrRecordNotFoundを返す。
	FindByEmail(ctx context.Context, email string) (*CredentialRecord, error)
	// InsertIfAbsent は同じメールアドレスが存在しない場合に限り認証情報を登録する。
	// 既に存在する場合はErrRecordExistsを返す。判定と登録は不可分に行う。
	InsertIfAbsent(ctx context.Context, rec *CredentialRecord) error
}

// MemoryStore はプロセス内のマップで認証情報を保持するCredentialStore。
// テストとデモ用で、プロセス終了とともに内容は失われる。
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]CredentialRecord
}

var _ CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]CredentialRecord)}
}

// FindByEmail はメールアドレスで認証情報を検索する。
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

// InsertIfAbsent は未登録のメールアドレスに限り認証情報を登録する。
func (s *MemoryStore) InsertIfAbsent(_ context.Context, rec *CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Email]; ok {
		return ErrRecordExists
	}
	s.records[rec.Email] = *rec
	return nil
}
