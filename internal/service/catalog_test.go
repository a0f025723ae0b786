package service

import (
	"github.com/shopspring/decimal"

	"github.com/drypzz/api-StockSystem/internal/domain"
)

func (s *IntegrationTestSuite) TestProductCreateValidation() {
	categoryID := s.seedCategory("books")

	_, err := s.Products.Create(s.Ctx, &domain.Product{CategoryID: categoryID})
	s.requireKind(err, domain.KindMissingValues)

	_, err = s.Products.Create(s.Ctx, &domain.Product{
		Name:       "Broken",
		Price:      decimal.RequireFromString("-1.00"),
		CategoryID: categoryID,
	})
	s.requireKind(err, domain.KindConflict)

	_, err = s.Products.Create(s.Ctx, &domain.Product{
		Name:       "Orphan",
		Price:      decimal.RequireFromString("1.00"),
		CategoryID: 424242,
	})
	s.requireKind(err, domain.KindNotFound)

	id, err := s.Products.Create(s.Ctx, &domain.Product{
		Name:          "Go in Action",
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: 5,
		CategoryID:    categoryID,
	})
	s.Require().NoError(err)

	product, err := s.Products.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal("Go in Action", product.Name)
	s.Require().True(product.Price.Equal(decimal.RequireFromString("10.00")))
}

func (s *IntegrationTestSuite) TestProductUpdateNeverTouchesStock() {
	categoryID := s.seedCategory("books")
	productID := s.seedProduct("Go in Action", "10.00", 5, categoryID)

	newPrice := decimal.RequireFromString("12.50")
	err := s.Products.Update(s.Ctx, productID, &domain.UpdateProductInput{
		Price: &newPrice,
	})
	s.Require().NoError(err)

	product, err := s.Products.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Require().True(product.Price.Equal(newPrice))
	s.Require().EqualValues(5, product.StockQuantity)
}

func (s *IntegrationTestSuite) TestProductListSearch() {
	categoryID := s.seedCategory("books")
	s.seedProduct("Go in Action", "10.00", 5, categoryID)
	s.seedProduct("Rust in Action", "12.00", 5, categoryID)
	s.seedProduct("Cooking Basics", "8.00", 5, categoryID)

	products, total, err := s.Products.List(s.Ctx, 10, 0, "Action")
	s.Require().NoError(err)
	s.Require().EqualValues(2, total)
	s.Require().Len(products, 2)

	_, total, err = s.Products.List(s.Ctx, 1, 0, "")
	s.Require().NoError(err)
	s.Require().EqualValues(3, total)
}

func (s *IntegrationTestSuite) TestCategoryDuplicateName() {
	_, err := s.Categories.Create(s.Ctx, &domain.Category{Name: "books"})
	s.Require().NoError(err)

	_, err = s.Categories.Create(s.Ctx, &domain.Category{Name: "books"})
	s.requireKind(err, domain.KindConflict)
}

func (s *IntegrationTestSuite) TestCategoryRoundTrip() {
	id, err := s.Categories.Create(s.Ctx, &domain.Category{
		Name:        "games",
		Description: "Board and video games",
	})
	s.Require().NoError(err)

	category, err := s.Categories.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal("games", category.Name)
	s.Require().Equal("Board and video games", category.Description)

	categories, err := s.Categories.List(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(categories, 1)
}

func (s *IntegrationTestSuite) TestCategoryUpdate() {
	id, err := s.Categories.Create(s.Ctx, &domain.Category{Name: "books"})
	s.Require().NoError(err)

	_, err = s.Categories.Create(s.Ctx, &domain.Category{Name: "music"})
	s.Require().NoError(err)

	newName := "ebooks"
	newDescription := "Digital books only"
	err = s.Categories.Update(s.Ctx, id, &domain.UpdateCategoryInput{
		Name:        &newName,
		Description: &newDescription,
	})
	s.Require().NoError(err)

	category, err := s.Categories.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal("ebooks", category.Name)
	s.Require().Equal("Digital books only", category.Description)

	taken := "music"
	err = s.Categories.Update(s.Ctx, id, &domain.UpdateCategoryInput{Name: &taken})
	s.requireKind(err, domain.KindConflict)

	err = s.Categories.Update(s.Ctx, 424242, &domain.UpdateCategoryInput{Name: &newName})
	s.requireKind(err, domain.KindNotFound)
}

func (s *IntegrationTestSuite) TestRegisterAndLogin() {
	user, err := s.Auth.Register(s.Ctx, "Ana Silva", "ana@example.com", "str0ngpass")
	s.Require().NoError(err)
	s.Require().NotZero(user.ID)

	_, err = s.Auth.Register(s.Ctx, "Other", "ana@example.com", "str0ngpass")
	s.requireKind(err, domain.KindConflict)

	token, logged, err := s.Auth.Login(s.Ctx, "ana@example.com", "str0ngpass")
	s.Require().NoError(err)
	s.Require().NotEmpty(token)
	s.Require().Equal(user.ID, logged.ID)

	_, _, err = s.Auth.Login(s.Ctx, "ana@example.com", "wrongpass1")
	s.requireKind(err, domain.KindUnauthorized)

	_, _, err = s.Auth.Login(s.Ctx, "ghost@example.com", "str0ngpass")
	s.requireKind(err, domain.KindUnauthorized)
}

func (s *IntegrationTestSuite) TestRegisterWeakPassword() {
	_, err := s.Auth.Register(s.Ctx, "Ana Silva", "ana@example.com", "short")
	s.requireKind(err, domain.KindConflict)

	_, err = s.Auth.Register(s.Ctx, "Ana Silva", "ana@example.com", "onlyletters")
	s.requireKind(err, domain.KindConflict)
}

func (s *IntegrationTestSuite) requireKind(err error, want domain.ErrorKind) {
	s.Require().Error(err)

	kind, ok := domain.KindOf(err)
	s.Require().True(ok, "expected a domain error, got %v", err)
	s.Require().Equal(want, kind)
}
