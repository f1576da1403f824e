package repository

import "document-access-service/internal/database/mongo"

type Repositories struct {
	DocumentRepository   *DocumentRepository
	GrantRepository      *GrantRepository
	RevocationRepository *RevocationRepository
	RedisRepository      *RedisRepo
}

var Repositories_instance = &Repositories{
	DocumentRepository:   NewDocumentRepository(mongo.Mongo_Database),
	GrantRepository:      NewGrantRepository(mongo.Mongo_Database),
	RevocationRepository: NewRevocationRepository(mongo.Mongo_Database),
	RedisRepository:      NewRedisRepo(),
}
