package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name TextGenerator --dir ../usecase --output usecase --outpkg usecasemock --filename text_generator_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Source --dir ../domain/player --output domain/player --outpkg playermock --filename source_mock.go
